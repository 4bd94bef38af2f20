package cggtts

import (
	"fmt"
	"hash"
	"strconv"
	"strings"
)

// cksum 按字节累加, 取模256
type cksum struct {
	sum uint32
}

// NewSum 以 hash.Hash32 形式提供校验和, Sum32 已经取模256
func NewSum() hash.Hash32 {
	var c cksum
	return &c
}

func (c *cksum) Size() int      { return 1 }
func (c *cksum) BlockSize() int { return 1 }
func (c *cksum) Reset()         { c.sum = 0 }

func (c *cksum) Sum(bs []byte) []byte {
	return append(bs, byte(c.sum))
}

func (c *cksum) Sum32() uint32 {
	return c.sum & 0xFF
}

func (c *cksum) Write(bs []byte) (int, error) {
	for _, b := range bs {
		c.sum = (c.sum + uint32(b)) & 0xFF
	}
	return len(bs), nil
}

func (c *cksum) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		c.sum = (c.sum + uint32(s[i])) & 0xFF
	}
	return len(s), nil
}

// Checksum 校验和
func Checksum(content string) byte {
	var c cksum
	c.WriteString(content)
	return byte(c.Sum32())
}

// FormatChecksum 两位大写十六进制
func FormatChecksum(ck byte) string {
	return fmt.Sprintf("%02X", ck)
}

// splitChecksum 拆出行尾的CK字段
// 返回的内容包含CK前面的空格, 校验和就是对这部分计算的
func splitChecksum(line string) (string, byte, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if len(line) < 3 {
		return "", 0, fmt.Errorf("line too short for checksum")
	}
	content, hex := line[:len(line)-2], line[len(line)-2:]
	ck, err := strconv.ParseUint(hex, 16, 8)
	if err != nil {
		return "", 0, fmt.Errorf("checksum %q: %w", hex, err)
	}
	return content, byte(ck), nil
}
