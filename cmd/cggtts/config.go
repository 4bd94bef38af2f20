package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/15226124477/cggtts"
	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

type scheduleConfig struct {
	TrackingSeconds int  `toml:"tracking_seconds"`
	OriginMJD       int  `toml:"origin_mjd"`
	BIPM            bool `toml:"bipm"`
}

// Config 配置文件
type Config struct {
	LogLevel      string         `toml:"log_level"`
	Workers       int            `toml:"workers"`
	Lenient       bool           `toml:"lenient"`
	SkipMalformed bool           `toml:"skip_malformed"`
	Encoding      string         `toml:"encoding"`
	Metrics       string         `toml:"metrics"`
	Schedule      scheduleConfig `toml:"schedule"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Lenient:  true,
		Schedule: scheduleConfig{
			TrackingSeconds: int(cggtts.DefaultTrackingDuration / time.Second),
			OriginMJD:       cggtts.ReferenceMJD,
		},
	}
}

// LoadConfig 读取 toml, 路径为空时使用默认配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Apply 设置日志级别
func (c Config) Apply() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	return nil
}

// Options 读写选项
func (c Config) Options() ([]cggtts.Option, error) {
	var opts []cggtts.Option
	if c.Lenient {
		opts = append(opts, cggtts.WithLenient())
	}
	if c.SkipMalformed {
		opts = append(opts, cggtts.WithSkipMalformed())
	}
	enc, err := encodingByName(c.Encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		opts = append(opts, cggtts.WithEncoding(enc))
	}
	return opts, nil
}

// SchedulerConfig 调度参数
func (c Config) SchedulerConfig() cggtts.SchedulerConfig {
	return cggtts.SchedulerConfig{
		TrackingDuration: time.Duration(c.Schedule.TrackingSeconds) * time.Second,
		Origin:           cggtts.FromMJD(c.Schedule.OriginMJD),
	}
}

func encodingByName(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8", "ascii":
		return nil, nil
	case "latin1", "iso8859-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "gbk":
		return simplifiedchinese.GBK, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
