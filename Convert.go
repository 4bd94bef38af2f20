package cggtts

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	labelLine     = "SAT CL  MJD  STTIME TRKL ELV AZTH   REFSV      SRSV     REFSYS    SRSYS  DSG IOE MDTR SMDT MDIO SMDI FR HC FRC CK"
	labelIonoLine = "SAT CL  MJD  STTIME TRKL ELV AZTH   REFSV      SRSV     REFSYS    SRSYS  DSG IOE MDTR SMDT MDIO SMDI MSIO SMSI ISG FR HC FRC CK"
	unitsLine     = "             hhmmss  s  .1dg .1dg    .1ns     .1ps/s     .1ns    .1ps/s .1ns     .1ns.1ps/s.1ns.1ps/s"
	unitsIonoLine = unitsLine + ".1ns.1ps/s.1ns"
)

var (
	errPartialIono = errors.New("partial ionospheric data dropped")
	errMissingIono = errors.New("no ionospheric data in dual frequency file")
)

// dualFrequency 有 IMS 或任一观测带完整电离层参数
func (c *CGGTTS) dualFrequency() bool {
	if c.Header.IMS != nil {
		return true
	}
	for _, t := range c.Tracks {
		if t.HasIono() {
			return true
		}
	}
	return false
}

// Write 按 2E 格式输出, 文件头和每行观测的校验和重新计算
// 不完整的电离层参数不输出, 限幅或替换过的字段照常写出, 都在 Diagnostics 中记录
func Write(w io.Writer, c *CGGTTS, opts ...Option) (Diagnostics, error) {
	o := newOptions(opts)
	bw := bufio.NewWriter(w)
	dual := c.dualFrequency()

	sum := NewSum()
	lines, diags := headerLines(c.Header, o)
	for _, line := range lines {
		sum.Write([]byte(line))
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return diags, err
		}
	}
	sum.Write([]byte(cksumPrefix))
	fmt.Fprintf(bw, "%s%s\n\n", cksumPrefix, FormatChecksum(byte(sum.Sum32())))

	if dual {
		fmt.Fprintf(bw, "%s\n%s\n", labelIonoLine, unitsIonoLine)
	} else {
		fmt.Fprintf(bw, "%s\n%s\n", labelLine, unitsLine)
	}

	for i, t := range c.Tracks {
		switch {
		case t.Iono != nil && !t.Iono.Complete():
			diags = append(diags, &TrackError{Index: i, SV: t.SV, Err: fmt.Errorf("%w: %w", ErrIncompleteTrack, errPartialIono)})
		case dual && t.Iono == nil:
			diags = append(diags, &TrackError{Index: i, SV: t.SV, Err: fmt.Errorf("%w: %w", ErrIncompleteTrack, errMissingIono)})
		}
		content, altered := t.content(dual && t.HasIono())
		if len(altered) > 0 {
			diags = append(diags, &TrackError{Index: i, SV: t.SV, Err: fmt.Errorf("%w: %s", ErrFieldAltered, strings.Join(altered, ", "))})
		}
		if _, err := bw.WriteString(content + FormatChecksum(Checksum(content)) + "\n"); err != nil {
			return diags, err
		}
	}
	for _, d := range diags {
		log.Warning(d)
	}
	return diags, bw.Flush()
}

// Marshal 输出为字节
func Marshal(c *CGGTTS, opts ...Option) ([]byte, Diagnostics, error) {
	var buf bytes.Buffer
	diags, err := Write(&buf, c, opts...)
	if err != nil {
		return nil, diags, err
	}
	return buf.Bytes(), diags, nil
}

// ToFile 写入文件, 已存在时覆盖
func (c *CGGTTS) ToFile(filePath string, opts ...Option) (Diagnostics, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	diags, err := Write(file, c, opts...)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		log.Debug("写入文件: ", filePath)
	}
	return diags, err
}
