package cggtts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

const (
	Revision     = "2E"
	VersionLine  = "CGGTTS GENERIC DATA FORMAT VERSION = " + Revision
	DefaultFrame = "ITRF"

	// BIPM 规定的跟踪时长
	DefaultTrackingDuration = 980 * time.Second
	// BIPM 日历中单次跟踪 13 分钟
	BIPMTrackingDuration = 780 * time.Second
)

// Hardware 接收机/电离层测量设备
type Hardware struct {
	Manufacturer string
	Model        string
	SerialNumber string
	Year         int
	Release      string
}

// unknownField 文件头中空字段的占位
const unknownField = "?"

// String 文件头格式 "manufacturer model serial year release"
// 空字段写成 "?", 型号/序列号/版本中的空白换成 "_"
func (h Hardware) String() string {
	year := unknownField
	if h.Year != 0 {
		year = strconv.Itoa(h.Year)
	}
	return strings.Join([]string{
		hardwareField(h.Manufacturer, " "),
		hardwareField(h.Model, "_"),
		hardwareField(h.SerialNumber, "_"),
		year,
		hardwareField(h.Release, "_"),
	}, " ")
}

func hardwareField(s, sep string) string {
	items := strings.Fields(s)
	if len(items) == 0 {
		return unknownField
	}
	return strings.Join(items, sep)
}

// Coordinates 天线相位中心 ECEF 坐标 m
type Coordinates struct {
	X     float64
	Y     float64
	Z     float64
	Frame string
}

// ReferenceKind 参考时间类型
type ReferenceKind int

const (
	RefCustom ReferenceKind = iota
	RefTAI
	RefUTC
	RefUTCk
)

// ReferenceTime REF 字段
type ReferenceTime struct {
	Kind  ReferenceKind
	Label string // UTC(k) 的实验室代码, 或自定义名称
}

func UTCk(lab string) ReferenceTime      { return ReferenceTime{Kind: RefUTCk, Label: lab} }
func CustomRef(name string) ReferenceTime { return ReferenceTime{Kind: RefCustom, Label: name} }

func (r ReferenceTime) String() string {
	switch r.Kind {
	case RefTAI:
		return "TAI"
	case RefUTC:
		return "UTC"
	case RefUTCk:
		return "UTC(" + r.Label + ")"
	default:
		return r.Label
	}
}

// ParseReferenceTime 解析 REF 字段
func ParseReferenceTime(s string) ReferenceTime {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "TAI"):
		return ReferenceTime{Kind: RefTAI}
	case strings.EqualFold(s, "UTC"):
		return ReferenceTime{Kind: RefUTC}
	case len(s) > 5 && strings.EqualFold(s[:4], "UTC(") && strings.HasSuffix(s, ")"):
		return UTCk(s[4 : len(s)-1])
	default:
		return CustomRef(s)
	}
}

// Header 文件头
type Header struct {
	ReleaseDate time.Time // REV DATE, 可为零值
	Receiver    Hardware
	NbChannels  int
	IMS         *Hardware // 电离层测量设备, 存在时为双频站
	Lab         string
	APC         Coordinates
	Comments    []string
	Delay       SystemDelay
	Reference   ReferenceTime
}

// SV 卫星
type SV struct {
	System gnss.System
	PRN    int
}

// Combined 卫星号99表示多颗卫星的组合
func (sv SV) Combined() bool {
	return sv.PRN == 99
}

// String 未设置星座时按 GPS 输出
func (sv SV) String() string {
	sys := sv.System
	if sys == 0 {
		sys = gnss.SysGPS
	}
	return fmt.Sprintf("%s%02d", sys.Abbr(), sv.PRN)
}

var systemPerAbbr = map[byte]gnss.System{
	'G': gnss.SysGPS,
	'R': gnss.SysGLO,
	'E': gnss.SysGAL,
	'J': gnss.SysQZSS,
	'C': gnss.SysBDS,
	'I': gnss.SysIRNSS,
	'S': gnss.SysSBAS,
	'M': gnss.SysMIXED,
}

// ParseSV 例如 G05 R24 E03, 也接受 "G 5"
func ParseSV(s string) (SV, error) {
	if len(s) < 2 {
		return SV{}, fmt.Errorf("invalid satellite %q", s)
	}
	sys, ok := systemPerAbbr[s[0]]
	if !ok {
		return SV{}, fmt.Errorf("invalid satellite system %q", s)
	}
	var prn int
	if _, err := fmt.Sscanf(strings.TrimSpace(s[1:]), "%d", &prn); err != nil {
		return SV{}, fmt.Errorf("invalid satellite number %q: %w", s, err)
	}
	return SV{System: sys, PRN: prn}, nil
}

// CommonViewClass CL 字段
type CommonViewClass int

const (
	ClassSingle      CommonViewClass = iota // 99
	ClassCombination                        // FF
)

func (c CommonViewClass) String() string {
	if c == ClassCombination {
		return "FF"
	}
	return "99"
}

func parseClass(s string) (CommonViewClass, error) {
	switch s {
	case "99":
		return ClassSingle, nil
	case "FF":
		return ClassCombination, nil
	default:
		return 0, fmt.Errorf("unknown common view class %q", s)
	}
}

// TrackData 单位: 秒, 秒/秒
type TrackData struct {
	REFSV  float64
	SRSV   float64
	REFSYS float64
	SRSYS  float64
	DSG    float64
	IOE    int
	MDTR   float64
	SMDT   float64
	MDIO   float64
	SMDI   float64
}

// IonosphericData 双频观测的电离层参数, 三项必须同时存在
type IonosphericData struct {
	MSIO *float64
	SMSI *float64
	ISG  *float64
}

// NewIonosphericData 三项齐全
func NewIonosphericData(msio, smsi, isg float64) *IonosphericData {
	return &IonosphericData{MSIO: &msio, SMSI: &smsi, ISG: &isg}
}

// Complete 三项都有
func (d *IonosphericData) Complete() bool {
	return d != nil && d.MSIO != nil && d.SMSI != nil && d.ISG != nil
}

// Values 三项都有时返回数值
func (d *IonosphericData) Values() (msio, smsi, isg float64, ok bool) {
	if !d.Complete() {
		return 0, 0, 0, false
	}
	return *d.MSIO, *d.SMSI, *d.ISG, true
}

// Track 一条观测
type Track struct {
	SV        SV
	Class     CommonViewClass
	Start     time.Time
	Duration  time.Duration
	Elevation float64 // deg
	Azimuth   float64 // deg
	Data      TrackData
	Iono      *IonosphericData
	FR        int    // GLONASS 频道号
	HC        int    // 接收机通道
	FRC       string // 载波代码
	Checksum  byte   // 读入时的 CK
}

// CGGTTS 一个文件
type CGGTTS struct {
	Header Header
	Tracks []Track
}
