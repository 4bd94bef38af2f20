package cggtts

import (
	"fmt"
	"hash"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	versionLabel = "CGGTTS GENERIC DATA FORMAT VERSION"
	noComments   = "NO COMMENTS"
	noIMS        = "99999"
	cksumPrefix  = "CKSUM = "
	dateLayout   = "2006-01-02"
)

// 例如 "34.6 ns (GPS C1)"
var delayEntry = regexp.MustCompile(`^([-+]?\d+(?:\.\d*)?)\s*ns(?:\s*\(\s*([A-Za-z]+)(?:\s+([A-Za-z0-9]+))?\s*\))?$`)

// headerBuilder 文件头逐行收集, 结束后统一处理时延优先级
type headerBuilder struct {
	hdr      Header
	opts     *options
	sum      hash.Hash32
	internal []CalibratedDelay
	system   []CalibratedDelay
	total    []CalibratedDelay
	calID    string
	last     *[]CalibratedDelay
	done     bool // 已读到 CKSUM
	diags    Diagnostics
}

func newHeaderBuilder(opts *options) *headerBuilder {
	b := &headerBuilder{opts: opts, sum: NewSum()}
	b.hdr.APC.Frame = DefaultFrame
	return b
}

// checkVersion 第一行必须是 2E 版本
func checkVersion(line string) error {
	label, value, ok := strings.Cut(line, "=")
	if !ok || strings.TrimSpace(label) != versionLabel {
		return fmt.Errorf("%w: not a CGGTTS version line: %q", ErrUnsupportedRevision, strings.TrimSpace(line))
	}
	if rev := strings.TrimSpace(value); rev != Revision {
		return fmt.Errorf("%w: %q", ErrUnsupportedRevision, rev)
	}
	return nil
}

func (b *headerBuilder) fail(n int, line string, kind error, err error) error {
	return &ParseError{Line: n, Text: line, Kind: kind, Err: err}
}

// line 处理一行 "LABEL = value"
func (b *headerBuilder) line(n int, line string) error {
	if strings.HasPrefix(line, cksumPrefix) {
		b.sum.Write([]byte(cksumPrefix))
		return b.checksum(n, line)
	}
	b.sum.Write([]byte(line))

	label, value, ok := strings.Cut(line, "=")
	if !ok {
		return b.unknown(n, line)
	}
	label = strings.TrimSpace(label)
	value = strings.TrimSpace(value)

	var err error
	switch label {
	case "REV DATE":
		b.hdr.ReleaseDate, err = time.Parse(dateLayout, value)
	case "RCVR":
		var herr error
		b.hdr.Receiver, herr = parseHardware(b.opts.decode(value))
		b.degraded(n, line, label, herr)
	case "CH":
		ch, cerr := strconv.Atoi(value)
		if cerr == nil && ch < 0 {
			cerr = fmt.Errorf("channel count %d", ch)
		}
		if cerr == nil {
			b.hdr.NbChannels = ch
		}
		b.degraded(n, line, label, cerr)
	case "IMS":
		if value == noIMS || value == "" {
			b.hdr.IMS = nil
			break
		}
		ims, herr := parseHardware(b.opts.decode(value))
		b.hdr.IMS = &ims
		b.degraded(n, line, label, herr)
	case "LAB":
		b.hdr.Lab = b.opts.decode(value)
	case "X":
		b.hdr.APC.X, err = parseUnit(value, "m")
	case "Y":
		b.hdr.APC.Y, err = parseUnit(value, "m")
	case "Z":
		b.hdr.APC.Z, err = parseUnit(value, "m")
	case "FRAME":
		if value != "" && value != "?" {
			b.hdr.APC.Frame = value
		}
	case "COMMENTS":
		b.hdr.Comments = append(b.hdr.Comments, b.opts.decode(value))
	case "INT DLY":
		err = b.delay(value, Internal, &b.internal)
	case "SYS DLY":
		err = b.delay(value, System, &b.system)
	case "TOT DLY":
		err = b.delay(value, System, &b.total)
	case "CAL_ID":
		b.setCalID(value)
	case "CAB DLY":
		b.hdr.Delay.Cable, err = parseUnit(value, "ns")
	case "REF DLY":
		b.hdr.Delay.Reference, err = parseUnit(value, "ns")
	case "REF":
		b.hdr.Reference = ParseReferenceTime(b.opts.decode(value))
	default:
		return b.unknown(n, line)
	}
	if err != nil {
		return b.fail(n, line, ErrMalformedHeader, fmt.Errorf("%s: %w", label, err))
	}
	return nil
}

// degraded 字段读不全时保留已读出的部分, 只记录不中断
func (b *headerBuilder) degraded(n int, line, label string, err error) {
	if err == nil {
		return
	}
	perr := b.fail(n, line, ErrMalformedHeader, fmt.Errorf("%s: %w", label, err))
	log.Warning(perr)
	b.diags = append(b.diags, perr)
}

func (b *headerBuilder) unknown(n int, line string) error {
	err := b.fail(n, line, ErrUnknownHeaderField, nil)
	if !b.opts.lenient {
		return err
	}
	log.Warning(err)
	b.diags = append(b.diags, err)
	return nil
}

// checksum 对比 CKSUM, 不一致只记录
func (b *headerBuilder) checksum(n int, line string) error {
	b.done = true
	v, err := strconv.ParseUint(strings.TrimSpace(line[len(cksumPrefix):]), 16, 8)
	if err != nil {
		return b.fail(n, line, ErrMalformedHeader, fmt.Errorf("CKSUM: %w", err))
	}
	if want := byte(b.sum.Sum32()); byte(v) != want {
		cerr := &ChecksumError{Got: byte(v), Want: want}
		log.Warning(cerr)
		b.diags = append(b.diags, cerr)
	}
	return nil
}

// delay 解析 INT/SYS/TOT DLY, 双频时用逗号分隔, 行尾可带 CAL_ID
func (b *headerBuilder) delay(value string, kind DelayKind, dst *[]CalibratedDelay) error {
	calID := ""
	if i := strings.Index(value, "CAL_ID"); i >= 0 {
		_, id, _ := strings.Cut(value[i:], "=")
		calID = strings.TrimSpace(id)
		value = strings.TrimSpace(value[:i])
	}
	entries := make([]CalibratedDelay, 0, 2)
	for _, item := range strings.Split(value, ",") {
		m := delayEntry.FindStringSubmatch(strings.TrimSpace(item))
		if m == nil {
			return fmt.Errorf("delay %q", item)
		}
		ns, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return err
		}
		d := CalibratedDelay{Delay: Delay{Kind: kind, Nanos: ns}, Code: m[3]}
		if m[2] != "" {
			if d.Constellation, err = parseConstellation(m[2]); err != nil {
				return err
			}
		}
		entries = append(entries, d)
	}
	*dst = entries
	b.last = dst
	if calID != "" {
		b.setCalID(calID)
	}
	return nil
}

// setCalID CAL_ID 归属于最近的时延行
func (b *headerBuilder) setCalID(id string) {
	if strings.EqualFold(id, "NA") {
		id = ""
	}
	if b.last != nil && len(*b.last) > 0 {
		(*b.last)[0].Info = id
		return
	}
	b.calID = id
}

// build TOT 优先, 其次 INT, 最后 SYS
func (b *headerBuilder) build() Header {
	hdr := b.hdr
	if noCommentsOnly(hdr.Comments) {
		hdr.Comments = nil
	}
	var chosen []CalibratedDelay
	switch {
	case len(b.total) > 0:
		chosen = b.total
	case len(b.internal) > 0:
		chosen = b.internal
	case len(b.system) > 0:
		chosen = b.system
	}
	if len(chosen) > 0 {
		primary := chosen[0]
		if primary.Info == "" {
			primary.Info = b.calID
		}
		if len(b.total) > 0 {
			hdr.Delay = hdr.Delay.WithTotal(primary)
		} else {
			hdr.Delay.Calibrated = primary
		}
		if len(chosen) > 1 {
			hdr.Delay.Secondary = append([]CalibratedDelay(nil), chosen[1:]...)
		}
	}
	return hdr
}

// parseHardware "manufacturer model serial year release"
// 厂商名可能带空格, 从右往左取; "?" 为空字段.
// 字段不足五个时从左往右填, 同时返回错误
func parseHardware(s string) (Hardware, error) {
	items := strings.Fields(s)
	for i, item := range items {
		if item == unknownField {
			items[i] = ""
		}
	}
	var h Hardware
	n := len(items)
	if n < 5 {
		fields := []*string{&h.Manufacturer, &h.Model, &h.SerialNumber}
		for i := 0; i < n && i < len(fields); i++ {
			*fields[i] = items[i]
		}
		if n == 4 {
			h.Year, _ = strconv.Atoi(items[3])
		}
		return h, fmt.Errorf("hardware %q: want manufacturer model serial year release", s)
	}
	h = Hardware{
		Manufacturer: strings.Join(items[:n-4], " "),
		Model:        items[n-4],
		SerialNumber: items[n-3],
		Release:      items[n-1],
	}
	if items[n-2] != "" {
		year, err := strconv.Atoi(items[n-2])
		if err != nil {
			return h, fmt.Errorf("hardware year %q: %w", items[n-2], err)
		}
		h.Year = year
	}
	return h, nil
}

// noCommentsOnly 只有一行 "NO COMMENTS" 时表示没有注释
func noCommentsOnly(comments []string) bool {
	return len(comments) == 1 && comments[0] == noComments
}

func parseUnit(s, unit string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), unit))
	return strconv.ParseFloat(s, 64)
}

// formatDelay 一条 "34.6 ns (GPS C1)"
func formatDelay(d CalibratedDelay) string {
	s := fmt.Sprintf("%.1f ns", d.Nanos)
	switch {
	case d.Constellation != 0 && d.Code != "":
		s += fmt.Sprintf(" (%s %s)", d.Constellation, d.Code)
	case d.Constellation != 0:
		s += fmt.Sprintf(" (%s)", d.Constellation)
	}
	return s
}

// headerLines 按固定顺序输出文件头, 不含 CKSUM 行.
// 读回后会变样的字段记在 Diagnostics 中
func headerLines(h Header, opts *options) ([]string, Diagnostics) {
	var diags Diagnostics
	lines := []string{VersionLine}
	if !h.ReleaseDate.IsZero() {
		lines = append(lines, "REV DATE = "+h.ReleaseDate.Format(dateLayout))
	}
	if err := hardwareAltered("RCVR", h.Receiver); err != nil {
		diags = append(diags, err)
	}
	ch := h.NbChannels
	if ch < 0 {
		diags = append(diags, fmt.Errorf("%w: CH %d written as 0", ErrFieldAltered, ch))
		ch = 0
	}
	lines = append(lines,
		"RCVR = "+opts.encode(h.Receiver.String()),
		fmt.Sprintf("CH = %d", ch),
	)
	if h.IMS != nil {
		if err := hardwareAltered("IMS", *h.IMS); err != nil {
			diags = append(diags, err)
		}
		lines = append(lines, "IMS = "+opts.encode(h.IMS.String()))
	} else {
		lines = append(lines, "IMS = "+noIMS)
	}
	if h.Lab != "" {
		lines = append(lines, "LAB = "+opts.encode(h.Lab))
	}
	frame := h.APC.Frame
	if frame == "" {
		frame = DefaultFrame
	}
	lines = append(lines,
		fmt.Sprintf("X = %12.3f m", h.APC.X),
		fmt.Sprintf("Y = %12.3f m", h.APC.Y),
		fmt.Sprintf("Z = %12.3f m", h.APC.Z),
		"FRAME = "+frame,
	)
	if len(h.Comments) == 0 {
		lines = append(lines, "COMMENTS = "+noComments)
	}
	if noCommentsOnly(h.Comments) {
		diags = append(diags, fmt.Errorf("%w: sole comment %q reads back as no comments", ErrFieldAltered, noComments))
	}
	for _, c := range h.Comments {
		lines = append(lines, "COMMENTS = "+opts.encode(c))
	}

	sd := h.Delay
	if sd.Calibrated.IsSet() {
		label := "SYS DLY"
		if _, ok := sd.Total(); ok {
			label = "TOT DLY"
		} else if sd.Calibrated.Kind == Internal {
			label = "INT DLY"
		}
		items := []string{formatDelay(sd.Calibrated)}
		for _, d := range sd.Secondary {
			items = append(items, formatDelay(d))
		}
		calID := sd.Calibrated.Info
		if calID == "" {
			calID = "NA"
		}
		lines = append(lines, fmt.Sprintf("%s = %s     CAL_ID = %s", label, strings.Join(items, ", "), calID))
	}
	lines = append(lines,
		fmt.Sprintf("CAB DLY = %05.1f ns", sd.Cable),
		fmt.Sprintf("REF DLY = %05.1f ns", sd.Reference),
		"REF = "+opts.encode(h.Reference.String()),
	)
	return lines, diags
}

// hardwareAltered 写出后读回不一致时返回错误
func hardwareAltered(label string, h Hardware) error {
	back, err := parseHardware(h.String())
	if err == nil && back == h {
		return nil
	}
	return fmt.Errorf("%w: %s %q %q %q %q written as %q", ErrFieldAltered, label,
		h.Manufacturer, h.Model, h.SerialNumber, h.Release, h.String())
}
