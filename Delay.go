package cggtts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// DelayKind 时延所在的物理段
type DelayKind int

const (
	Cable DelayKind = iota + 1
	Reference
	System
	Internal
)

func (k DelayKind) String() string {
	switch k {
	case Cable:
		return "CAB"
	case Reference:
		return "REF"
	case System:
		return "SYS"
	case Internal:
		return "INT"
	default:
		return ""
	}
}

// Delay 纳秒为单位
type Delay struct {
	Kind  DelayKind
	Nanos float64
}

func CableDelay(ns float64) Delay     { return Delay{Kind: Cable, Nanos: ns} }
func ReferenceDelay(ns float64) Delay { return Delay{Kind: Reference, Nanos: ns} }
func SystemDelayOf(ns float64) Delay  { return Delay{Kind: System, Nanos: ns} }
func InternalDelay(ns float64) Delay  { return Delay{Kind: Internal, Nanos: ns} }

// Seconds 换算成秒
func (d Delay) Seconds() float64 {
	return d.Nanos * 1e-9
}

// CalibrationID 校准编号, 例如 1015-2024
type CalibrationID struct {
	Process uint16
	Year    uint16
}

func (c CalibrationID) String() string {
	return fmt.Sprintf("%d-%d", c.Process, c.Year)
}

// ParseCalibrationID 解析 CAL_ID 字段, NA 返回 nil
func ParseCalibrationID(s string) (*CalibrationID, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return nil, nil
	}
	process, year, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("calibration id %q", s)
	}
	p, err := strconv.ParseUint(strings.TrimSpace(process), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("calibration id %q: %w", s, err)
	}
	y, err := strconv.ParseUint(strings.TrimSpace(year), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("calibration id %q: %w", s, err)
	}
	return &CalibrationID{Process: uint16(p), Year: uint16(y)}, nil
}

// CalibratedDelay 带星座标签的系统/内部时延
// Constellation 为 gnss.SysMIXED 时不可信; 零值表示未设置
type CalibratedDelay struct {
	Delay
	Constellation gnss.System
	Code          string
	Info          string // CAL_ID 原文, 空表示 NA
}

// Calibrated 构造
func Calibrated(d Delay, sys gnss.System, code string) CalibratedDelay {
	return CalibratedDelay{Delay: d, Constellation: sys, Code: code}
}

// CalibrationID 解析 Info 中的校准编号
func (c CalibratedDelay) CalibrationID() (*CalibrationID, error) {
	return ParseCalibrationID(c.Info)
}

// IsSet 是否已经给出
func (c CalibratedDelay) IsSet() bool {
	return c.Kind != 0
}

// Trusted 非混合星座的校准才可信
func (c CalibratedDelay) Trusted() bool {
	return c.IsSet() && c.Constellation != 0 && c.Constellation != gnss.SysMIXED
}

// Combine 相加规则:
//   - 同一星座: 数值相加
//   - 不同星座且都不是混合: 不变
//   - 任一为混合: 相加, 结果标记为混合 (永久不可信)
//
// 未设置的一方直接采用另一方.
func (c CalibratedDelay) Combine(other CalibratedDelay) CalibratedDelay {
	if !other.IsSet() {
		return c
	}
	if !c.IsSet() {
		return other
	}
	switch {
	case c.Constellation == gnss.SysMIXED || other.Constellation == gnss.SysMIXED:
		c.Nanos += other.Nanos
		c.Constellation = gnss.SysMIXED
	case c.Constellation == other.Constellation:
		c.Nanos += other.Nanos
	}
	return c
}

// SystemDelay 整套测量系统时延
type SystemDelay struct {
	Cable      float64 // 天线电缆时延 ns
	Reference  float64 // 参考时延 ns
	Calibrated CalibratedDelay
	Secondary  []CalibratedDelay // 双频时同一行的其它载波

	total bool // Calibrated 来自 TOT DLY
}

// NewSystemDelay 构造; internal 与 system 都给出时取 internal
func NewSystemDelay(cable, ref float64, delays ...CalibratedDelay) SystemDelay {
	sd := SystemDelay{Cable: cable, Reference: ref}
	for _, d := range delays {
		switch d.Kind {
		case Internal:
			sd.Calibrated = d
		case System:
			if sd.Calibrated.Kind != Internal {
				sd.Calibrated = d
			}
		}
	}
	return sd
}

// WithTotal 总时延 (TOT DLY), 取代 INT/SYS
func (sd SystemDelay) WithTotal(d CalibratedDelay) SystemDelay {
	d.Kind = System
	sd.Calibrated = d
	sd.total = true
	return sd
}

// Total 返回 TOT DLY 给出的值
func (sd SystemDelay) Total() (float64, bool) {
	if !sd.total {
		return 0, false
	}
	return sd.Calibrated.Nanos, true
}

// IsSet 是否有任何时延信息
func (sd SystemDelay) IsSet() bool {
	return sd.total || sd.Calibrated.IsSet() || sd.Cable != 0 || sd.Reference != 0
}

// Value 总时延 ns; 有 TOT DLY 时直接取其值
func (sd SystemDelay) Value() float64 {
	if sd.total {
		return sd.Calibrated.Nanos
	}
	return sd.Cable + sd.Reference + sd.Calibrated.Nanos
}

// Trusted 跟随校准时延
func (sd SystemDelay) Trusted() bool {
	return sd.Calibrated.Trusted()
}

// Add 返回新的聚合, 原值不变
func (sd SystemDelay) Add(other CalibratedDelay) SystemDelay {
	out := sd
	out.Calibrated = sd.Calibrated.Combine(other)
	if len(sd.Secondary) > 0 {
		out.Secondary = append([]CalibratedDelay(nil), sd.Secondary...)
	}
	return out
}

// Seconds 总时延 秒
func (sd SystemDelay) Seconds() float64 {
	return sd.Value() * 1e-9
}

var constellationNames = map[string]gnss.System{
	"GPS":     gnss.SysGPS,
	"GLO":     gnss.SysGLO,
	"GLONASS": gnss.SysGLO,
	"GAL":     gnss.SysGAL,
	"GALILEO": gnss.SysGAL,
	"BDS":     gnss.SysBDS,
	"BEIDOU":  gnss.SysBDS,
	"QZSS":    gnss.SysQZSS,
	"IRNSS":   gnss.SysIRNSS,
	"SBAS":    gnss.SysSBAS,
	"MIXED":   gnss.SysMIXED,
	"MIX":     gnss.SysMIXED,
}

func parseConstellation(s string) (gnss.System, error) {
	sys, ok := constellationNames[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown constellation %q", s)
	}
	return sys, nil
}
