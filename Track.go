package cggtts

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

const (
	trackItems     = 21 // 不含电离层参数
	trackIonoItems = 24

	nanoScale = 1e10 // 0.1 ns
	picoScale = 1e13 // 0.1 ps/s
	degScale  = 10.0 // 0.1 deg
)

// MJD 约化儒略日 (整数部分)
func MJD(t time.Time) int {
	sec := t.Unix()
	days := sec / 86400
	if sec%86400 < 0 {
		days--
	}
	return int(days) + 40587
}

// FromMJD 约化儒略日0点
func FromMJD(mjd int) time.Time {
	return time.Date(1858, time.November, 17+mjd, 0, 0, 0, 0, time.UTC)
}

// End 结束时刻
func (t Track) End() time.Time {
	return t.Start.Add(t.Duration)
}

// HasIono 是否带完整的电离层参数
func (t Track) HasIono() bool {
	return t.Iono.Complete()
}

// FollowsBIPM 是否为 BIPM 规定的 13 分钟跟踪
func (t Track) FollowsBIPM() bool {
	return t.Duration == BIPMTrackingDuration
}

// Validate 检查仰角和方位角范围
func (t Track) Validate() error {
	var errs []string
	if t.Elevation < 0 || t.Elevation > 90 {
		errs = append(errs, fmt.Sprintf("elevation %.1f out of [0, 90]", t.Elevation))
	}
	if t.Azimuth < 0 || t.Azimuth >= 360 {
		errs = append(errs, fmt.Sprintf("azimuth %.1f out of [0, 360)", t.Azimuth))
	}
	if t.Duration <= 0 {
		errs = append(errs, fmt.Sprintf("duration %s", t.Duration))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", t.SV, strings.Join(errs, ", "))
}

// parseTrack 解析一行观测, CK 只读出不校验
func parseTrack(line string) (Track, error) {
	var trk Track
	line = strings.TrimRight(line, " \t\r\n")
	if len(line) < 4 {
		return trk, fmt.Errorf("line too short")
	}
	sv, err := ParseSV(line[:3])
	if err != nil {
		return trk, err
	}
	trk.SV = sv

	items := strings.Fields(line[3:])
	withIono := false
	switch len(items) + 1 {
	case trackItems:
	case trackIonoItems:
		withIono = true
	default:
		return trk, fmt.Errorf("got %d fields, want %d or %d", len(items)+1, trackItems, trackIonoItems)
	}

	p := fieldParser{items: items}
	if trk.Class, err = parseClass(p.next("CL")); err != nil {
		return trk, err
	}
	mjd := p.int("MJD")
	sttime := p.next("STTIME")
	trkl := p.int("TRKL")
	trk.Elevation = p.scaled("ELV", degScale)
	trk.Azimuth = p.scaled("AZTH", degScale)
	trk.Data.REFSV = p.scaled("REFSV", nanoScale)
	trk.Data.SRSV = p.scaled("SRSV", picoScale)
	trk.Data.REFSYS = p.scaled("REFSYS", nanoScale)
	trk.Data.SRSYS = p.scaled("SRSYS", picoScale)
	trk.Data.DSG = p.scaled("DSG", nanoScale)
	trk.Data.IOE = p.int("IOE")
	trk.Data.MDTR = p.scaled("MDTR", nanoScale)
	trk.Data.SMDT = p.scaled("SMDT", picoScale)
	trk.Data.MDIO = p.scaled("MDIO", nanoScale)
	trk.Data.SMDI = p.scaled("SMDI", picoScale)
	if withIono {
		trk.Iono = NewIonosphericData(
			p.scaled("MSIO", nanoScale),
			p.scaled("SMSI", picoScale),
			p.scaled("ISG", nanoScale),
		)
	}
	trk.FR = p.int("FR")
	trk.HC = p.int("HC")
	trk.FRC = p.next("FRC")
	ck := p.next("CK")
	if p.err != nil {
		return trk, p.err
	}

	start, err := parseSttime(mjd, sttime)
	if err != nil {
		return trk, err
	}
	trk.Start = start
	trk.Duration = time.Duration(trkl) * time.Second

	v, err := strconv.ParseUint(ck, 16, 8)
	if err != nil || len(ck) != 2 {
		return trk, fmt.Errorf("CK %q", ck)
	}
	trk.Checksum = byte(v)
	return trk, nil
}

func parseSttime(mjd int, s string) (time.Time, error) {
	if len(s) != 6 {
		return time.Time{}, fmt.Errorf("STTIME %q", s)
	}
	h, errH := strconv.Atoi(s[0:2])
	m, errM := strconv.Atoi(s[2:4])
	sec, errS := strconv.Atoi(s[4:6])
	if errH != nil || errM != nil || errS != nil || h > 23 || m > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("STTIME %q", s)
	}
	return time.Date(1858, time.November, 17+mjd, h, m, sec, 0, time.UTC), nil
}

// fieldParser 逐个读取字段, 记住第一个错误
type fieldParser struct {
	items []string
	pos   int
	err   error
}

func (p *fieldParser) next(name string) string {
	if p.err != nil {
		return ""
	}
	if p.pos >= len(p.items) {
		p.err = fmt.Errorf("missing %s", name)
		return ""
	}
	s := p.items[p.pos]
	p.pos++
	return s
}

func (p *fieldParser) int(name string) int {
	s := p.next(name)
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.err = fmt.Errorf("%s %q: %w", name, s, err)
	}
	return v
}

func (p *fieldParser) scaled(name string, scale float64) float64 {
	return float64(p.int(name)) / scale
}

// saturated 按比例取整并限幅, 负数少一位留给符号
func saturated(v, scale float64, sat int64) int64 {
	n := int64(math.Round(v * scale))
	if n < 0 {
		return max(n, -sat/10)
	}
	return min(n, sat)
}

// columns 输出一行时记下被限幅或替换的列
type columns struct {
	altered []string
}

func (c *columns) fit(name string, v, scale float64, sat int64) int64 {
	n := saturated(v, scale, sat)
	if n != int64(math.Round(v*scale)) {
		c.altered = append(c.altered, name)
	}
	return n
}

func (c *columns) capped(name string, v, limit int64) int64 {
	if v > limit {
		c.altered = append(c.altered, name)
		return limit
	}
	return v
}

// content 输出不含 CK 的行内容, 末尾带空格.
// 第二个返回值为写出时被改动的列名
func (t Track) content(withIono bool) (string, []string) {
	var b strings.Builder
	var c columns
	if t.SV.System == 0 {
		c.altered = append(c.altered, "SAT")
	}
	h, m, s := t.Start.UTC().Clock()
	fmt.Fprintf(&b, "%s %s %5d %02d%02d%02d %04d %03d %04d ",
		t.SV, t.Class, MJD(t.Start), h, m, s,
		c.capped("TRKL", int64(t.Duration/time.Second), 9999),
		c.fit("ELV", t.Elevation, degScale, 999),
		c.fit("AZTH", t.Azimuth, degScale, 9999),
	)
	fmt.Fprintf(&b, "%11d %6d %11d %6d %4d %03d %4d %4d %4d %4d ",
		c.fit("REFSV", t.Data.REFSV, nanoScale, 99999999999),
		c.fit("SRSV", t.Data.SRSV, picoScale, 999999),
		c.fit("REFSYS", t.Data.REFSYS, nanoScale, 99999999999),
		c.fit("SRSYS", t.Data.SRSYS, picoScale, 999999),
		c.fit("DSG", t.Data.DSG, nanoScale, 9999),
		c.capped("IOE", int64(t.Data.IOE), 999),
		c.fit("MDTR", t.Data.MDTR, nanoScale, 9999),
		c.fit("SMDT", t.Data.SMDT, picoScale, 9999),
		c.fit("MDIO", t.Data.MDIO, nanoScale, 9999),
		c.fit("SMDI", t.Data.SMDI, picoScale, 9999),
	)
	if withIono {
		msio, smsi, isg, _ := t.Iono.Values()
		fmt.Fprintf(&b, "%4d %4d %3d ",
			c.fit("MSIO", msio, nanoScale, 9999),
			c.fit("SMSI", smsi, picoScale, 9999),
			c.fit("ISG", isg, nanoScale, 999),
		)
	}
	frc := t.FRC
	if frc == "" {
		frc = defaultCarrier(t.SV.System)
	}
	fmt.Fprintf(&b, "%2d %2d %3s ", t.FR, t.HC, frc)
	return b.String(), c.altered
}

// String 输出完整一行 (含 CK)
func (t Track) String() string {
	c, _ := t.content(t.HasIono())
	return c + FormatChecksum(Checksum(c))
}

// NewTrack 按调度窗口生成一条观测, 其余字段由调用方填写
func NewTrack(sv SV, w Window, elevation, azimuth float64, data TrackData) Track {
	class := ClassSingle
	if sv.Combined() {
		class = ClassCombination
	}
	return Track{
		SV:        sv,
		Class:     class,
		Start:     w.Start,
		Duration:  w.Duration,
		Elevation: elevation,
		Azimuth:   azimuth,
		Data:      data,
		FRC:       defaultCarrier(sv.System),
	}
}

func defaultCarrier(sys gnss.System) string {
	switch sys {
	case gnss.SysGLO:
		return "L1P"
	case gnss.SysGAL:
		return "E1"
	case gnss.SysBDS:
		return "B1i"
	default:
		return "L1C"
	}
}
