package cggtts

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// 例如 GZSY8259.568
var fileNamePattern = regexp.MustCompile(`^([GRECJ])([SMZ])(\w{0,4})(\d{2})\.(\d{3})$`)

// FileNameInfo 标准文件名中的信息
type FileNameInfo struct {
	System  gnss.System
	Kind    byte   // S 单频单通道, M 单频多通道, Z 双频
	Station string // 实验室代码 + 接收机编号
	MJD     int
}

func (c *CGGTTS) fileKind() byte {
	switch {
	case c.HasIonosphericParameters():
		return 'Z'
	case c.Header.NbChannels == 1:
		return 'S'
	default:
		return 'M'
	}
}

// FileName 标准文件名: 星座 + S/M/Z + 实验室(2) + 接收机(2) + MJD (XX.XXX)
// lab 为空时使用文件头中的 LAB
func (c *CGGTTS) FileName(lab, receiver string) string {
	if lab == "" {
		lab = c.Header.Lab
	}
	sys := gnss.SysGPS
	if len(c.Tracks) > 0 && c.Tracks[0].SV.System != 0 {
		sys = c.Tracks[0].SV.System
	}
	name := sys.Abbr() + string(c.fileKind()) + truncate(lab, 2) + truncate(receiver, 2)
	first, ok := c.FirstEpoch()
	if !ok {
		return name + "YY.YYY"
	}
	mjd := MJD(first)
	return name + fmt.Sprintf("%02d.%03d", mjd/1000, mjd%1000)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ParseFileName 从标准文件名取出星座和日期
func ParseFileName(path string) (FileNameInfo, error) {
	name := filepath.Base(path)
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return FileNameInfo{}, fmt.Errorf("%q does not follow the CGGTTS naming convention", name)
	}
	thousands, _ := strconv.Atoi(m[4])
	units, _ := strconv.Atoi(m[5])
	return FileNameInfo{
		System:  systemPerAbbr[m[1][0]],
		Kind:    m[2][0],
		Station: m[3],
		MJD:     thousands*1000 + units,
	}, nil
}
