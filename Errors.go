package cggtts

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedRevision = errors.New("unsupported revision")
	ErrUnknownHeaderField  = errors.New("unknown header field")
	ErrMalformedHeader     = errors.New("malformed header field")
	ErrMalformedTrackLine  = errors.New("malformed track line")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrInvalidDuration     = errors.New("invalid tracking duration")
	ErrIncompleteTrack     = errors.New("incomplete track")
	// 写出的字段与内存中的值不一致 (限幅, 占位, 替换)
	ErrFieldAltered = errors.New("field altered on write")
)

// ParseError 带行号的解析错误, errors.Is 可以匹配到 Kind
type ParseError struct {
	Line int
	Text string
	Kind error
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Kind, e.Text)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ChecksumError 校验和不一致, Line 为0时表示文件头
type ChecksumError struct {
	Line int
	Got  byte
	Want byte
}

func (e *ChecksumError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("header: %s: got %02X, computed %02X", ErrChecksumMismatch, e.Got, e.Want)
	}
	return fmt.Sprintf("line %d: %s: got %02X, computed %02X", e.Line, ErrChecksumMismatch, e.Got, e.Want)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// TrackError 写文件时单条观测的问题
type TrackError struct {
	Index int
	SV    SV
	Err   error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %d (%s): %s", e.Index, e.SV, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// Diagnostics 非致命问题列表
type Diagnostics []error

// Err 合并成一个错误, 为空时返回nil
func (d Diagnostics) Err() error {
	return errors.Join(d...)
}

// Has 是否包含某类错误
func (d Diagnostics) Has(kind error) bool {
	for _, err := range d {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Count 某类错误的个数
func (d Diagnostics) Count(kind error) int {
	n := 0
	for _, err := range d {
		if errors.Is(err, kind) {
			n++
		}
	}
	return n
}
