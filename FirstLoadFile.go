package cggtts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
)

// Option 读写选项
type Option func(*options)

type options struct {
	lenient       bool
	skipMalformed bool
	enc           encoding.Encoding
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WithLenient 未知的文件头字段只记录, 不报错
func WithLenient() Option {
	return func(o *options) { o.lenient = true }
}

// WithSkipMalformed 跳过无法解析的观测行
func WithSkipMalformed() Option {
	return func(o *options) { o.skipMalformed = true }
}

// WithEncoding 自由文本字段 (LAB COMMENTS RCVR IMS REF) 的字符编码
// 例如 charmap.ISO8859_1, simplifiedchinese.GBK
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) { o.enc = enc }
}

func (o *options) decode(s string) string {
	if o.enc == nil {
		return s
	}
	out, err := o.enc.NewDecoder().String(s)
	if err != nil {
		log.Debug("解码失败: ", err)
		return s
	}
	return out
}

func (o *options) encode(s string) string {
	if o.enc == nil {
		return s
	}
	out, err := o.enc.NewEncoder().String(s)
	if err != nil {
		log.Debug("编码失败: ", err)
		return s
	}
	return out
}

var trackShape = regexp.MustCompile(`^[A-Z][ 0-9][0-9] +(99|FF) +\d{5} +\d{6} `)

type parseState int

const (
	stateVersion parseState = iota
	stateHeader
	statePreamble
	stateTracks
)

func isLabelLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "SAT ")
}

func isUnitsLine(line string) bool {
	return strings.Contains(line, "hhmmss")
}

// Parse 读取一个 CGGTTS 2E 文件
// 返回的 Diagnostics 为可恢复的问题 (校验和不一致, 范围异常等)
func Parse(r io.Reader, opts ...Option) (*CGGTTS, Diagnostics, error) {
	o := newOptions(opts)
	hb := newHeaderBuilder(o)
	file := &CGGTTS{}
	var diags Diagnostics

	br := bufio.NewReader(r)
	state := stateVersion
	n := 0
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, diags, err
		}
		if raw == "" && err == io.EOF {
			break
		}
		n++
		line := strings.TrimRight(raw, "\r\n")

		switch state {
		case stateVersion:
			if strings.TrimSpace(line) == "" {
				break
			}
			if verr := checkVersion(line); verr != nil {
				return nil, diags, &ParseError{Line: n, Text: line, Kind: ErrUnsupportedRevision, Err: verr}
			}
			hb.sum.Write([]byte(line))
			state = stateHeader
		case stateHeader:
			switch {
			case strings.TrimSpace(line) == "":
				state = statePreamble
			case isLabelLine(line):
				state = stateTracks
			case trackShape.MatchString(line):
				state = stateTracks
				if terr := file.readTrack(n, line, o, &diags); terr != nil {
					return nil, diags, terr
				}
			default:
				if herr := hb.line(n, line); herr != nil {
					return nil, diags, herr
				}
				if hb.done {
					state = statePreamble
				}
			}
		case statePreamble, stateTracks:
			switch {
			case strings.TrimSpace(line) == "":
			case isLabelLine(line):
				state = stateTracks
			case isUnitsLine(line):
			default:
				state = stateTracks
				if terr := file.readTrack(n, line, o, &diags); terr != nil {
					return nil, diags, terr
				}
			}
		}
		if err == io.EOF {
			break
		}
	}
	if state == stateVersion {
		return nil, diags, fmt.Errorf("%w: empty input", ErrUnsupportedRevision)
	}
	if !hb.done {
		diags = append(diags, &ParseError{Line: n, Kind: ErrMalformedHeader, Err: errors.New("missing CKSUM")})
	}
	file.Header = hb.build()
	diags = append(hb.diags, diags...)
	log.Debug("读取观测数: ", len(file.Tracks), " 问题数: ", len(diags))
	return file, diags, nil
}

// readTrack 一行观测; 只有格式错误且未设置跳过时返回错误
func (c *CGGTTS) readTrack(n int, line string, o *options, diags *Diagnostics) error {
	trk, err := parseTrack(line)
	if err != nil {
		perr := &ParseError{Line: n, Text: line, Kind: ErrMalformedTrackLine, Err: err}
		if !o.skipMalformed {
			return perr
		}
		log.Warning(perr)
		*diags = append(*diags, perr)
		return nil
	}
	if content, ck, cerr := splitChecksum(line); cerr == nil {
		if want := Checksum(content); want != ck {
			e := &ChecksumError{Line: n, Got: ck, Want: want}
			log.Warning(e)
			*diags = append(*diags, e)
		}
	}
	if verr := trk.Validate(); verr != nil {
		*diags = append(*diags, &TrackError{Index: len(c.Tracks), SV: trk.SV, Err: verr})
	}
	c.Tracks = append(c.Tracks, trk)
	return nil
}

// ParseString 从字符串读取
func ParseString(s string, opts ...Option) (*CGGTTS, Diagnostics, error) {
	return Parse(strings.NewReader(s), opts...)
}

// LoadFile 打开并读取文件
func LoadFile(filePath string, opts ...Option) (*CGGTTS, Diagnostics, error) {
	fi, err := os.Open(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer fi.Close()
	c, diags, err := Parse(fi, opts...)
	if err != nil {
		return nil, diags, fmt.Errorf("%s: %w", filePath, err)
	}
	return c, diags, nil
}

// LoadTask 一个待读取的文件
type LoadTask struct {
	Index int
	Path  string
}

// LoadResult 读取结果, 顺序与输入一致
type LoadResult struct {
	Path        string
	File        *CGGTTS
	Diagnostics Diagnostics
	Err         error
}

// LoadFiles 并发读取多个文件, workers<=0 时按 CPU 数
func LoadFiles(paths []string, workers int, opts ...Option) []LoadResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(runtime.NumCPU())
	}
	workers = max(1, min(workers, len(paths)))
	log.Info("同时读取文件数:", workers)

	tasks := make([]LoadTask, len(paths))
	for i, p := range paths {
		tasks[i] = LoadTask{Index: i, Path: p}
	}
	results := make([]LoadResult, len(paths))
	taskChan := make(chan LoadTask, workers)
	done := make(chan struct{}, workers)
	go InitTask(taskChan, tasks)
	DistributeTask(taskChan, results, opts, workers, done)
	CloseResult(done, workers)
	return results
}

// InitTask 初始化读取任务
func InitTask(taskchan chan<- LoadTask, tasks []LoadTask) {
	for _, t := range tasks {
		taskchan <- t
	}
	close(taskchan)
}

// DistributeTask 分配任务
func DistributeTask(taskchan <-chan LoadTask, results []LoadResult, opts []Option, workers int, done chan struct{}) {
	for i := 0; i < workers; i++ {
		go ProcessTask(taskchan, results, opts, done)
	}
}

// ProcessTask 每个任务写入自己的结果槽位
func ProcessTask(taskchan <-chan LoadTask, results []LoadResult, opts []Option, done chan struct{}) {
	for t := range taskchan {
		c, diags, err := LoadFile(t.Path, opts...)
		if err != nil {
			log.Warning(err)
		}
		results[t.Index] = LoadResult{Path: t.Path, File: c, Diagnostics: diags, Err: err}
	}
	done <- struct{}{}
}

// CloseResult 等待所有 worker 结束
func CloseResult(done chan struct{}, workers int) {
	for i := 0; i < workers; i++ {
		<-done
	}
}
