package cggtts

import (
	"fmt"
	"iter"
	"time"

	"github.com/reugn/go-quartz/quartz"
)

// ReferenceMJD 共视日历的参考日, 当天第一次跟踪在 00:02 UTC
const ReferenceMJD = 50722

// Window 一个跟踪窗口
type Window struct {
	Start    time.Time
	Duration time.Duration
}

// End 窗口结束时刻
func (w Window) End() time.Time {
	return w.Start.Add(w.Duration)
}

func (w Window) String() string {
	return fmt.Sprintf("MJD %d %s %s", MJD(w.Start), w.Start.UTC().Format("15:04:05"), w.Duration)
}

// SchedulerConfig 调度参数
type SchedulerConfig struct {
	TrackingDuration time.Duration
	Origin           time.Time // 窗口对齐的起点
}

// DefaultSchedulerConfig 980s, 对齐到 MJD 50722 0点
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TrackingDuration: DefaultTrackingDuration,
		Origin:           FromMJD(ReferenceMJD),
	}
}

// Scheduler 所有使用相同参数的站点得到相同的窗口
type Scheduler struct {
	cfg SchedulerConfig
}

// NewScheduler 跟踪时长必须为正; Origin 为零值时使用默认起点
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.TrackingDuration <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, cfg.TrackingDuration)
	}
	if cfg.Origin.IsZero() {
		cfg.Origin = FromMJD(ReferenceMJD)
	}
	return &Scheduler{cfg: cfg}, nil
}

// TrackingDuration 当前跟踪时长
func (s *Scheduler) TrackingDuration() time.Duration {
	return s.cfg.TrackingDuration
}

// WithTrackingDuration 返回新的调度器, 原调度器不变
// 非默认时长会和其它站点失去同步, 无法再做共视比对
func (s *Scheduler) WithTrackingDuration(d time.Duration) (*Scheduler, error) {
	cfg := s.cfg
	cfg.TrackingDuration = d
	return NewScheduler(cfg)
}

// boundary 不早于 t 的第一个对齐时刻
func (s *Scheduler) boundary(t time.Time) time.Time {
	d := s.cfg.TrackingDuration
	diff := t.Sub(s.cfg.Origin)
	n := diff / d
	if diff%d > 0 {
		n++
	}
	return s.cfg.Origin.Add(n * d)
}

// NextWindow 严格晚于 after 开始的下一个窗口
func (s *Scheduler) NextWindow(after time.Time) Window {
	return Window{Start: s.boundary(after.Add(time.Nanosecond)), Duration: s.cfg.TrackingDuration}
}

// Windows [start, end) 内的完整窗口, 末尾不完整的窗口丢弃
// 可以重复遍历, 每次结果相同
func (s *Scheduler) Windows(start, end time.Time) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		d := s.cfg.TrackingDuration
		for t := s.boundary(start); !t.Add(d).After(end); t = t.Add(d) {
			if !yield(Window{Start: t, Duration: d}) {
				return
			}
		}
	}
}

// Trigger 返回在每个窗口开始时触发的 quartz.Trigger
func (s *Scheduler) Trigger() *WindowTrigger {
	return &WindowTrigger{
		next: func(t time.Time) Window { return s.NextWindow(t) },
		desc: s.cfg.TrackingDuration.String(),
	}
}

// WindowTrigger 实现 quartz.Trigger
type WindowTrigger struct {
	next func(time.Time) Window // 严格晚于参数的下一个窗口
	desc string
}

var _ quartz.Trigger = (*WindowTrigger)(nil)

// NextFireTime prev 为 UnixNano
func (t *WindowTrigger) NextFireTime(prev int64) (int64, error) {
	return t.next(time.Unix(0, prev)).Start.UnixNano(), nil
}

func (t *WindowTrigger) Description() string {
	return fmt.Sprintf("CGGTTSTrigger%s%s", quartz.Sep, t.desc)
}

// BIPMPeriod 共视周期: 准备 + 跟踪
type BIPMPeriod struct {
	Setup    time.Duration
	Tracking time.Duration
}

// BIPMCalendar 3 分钟准备, 13 分钟跟踪
var BIPMCalendar = BIPMPeriod{Setup: 180 * time.Second, Tracking: BIPMTrackingDuration}

// Period 周期总长
func (p BIPMPeriod) Period() time.Duration {
	return p.Setup + p.Tracking
}

func (p BIPMPeriod) standard() bool {
	return p == BIPMCalendar
}

// FirstTrackOffset 当天第一次跟踪相对0点的偏移
// 参考日为2分钟, 之后每天提前4分钟, 对周期取模; 非标准周期为0
func (p BIPMPeriod) FirstTrackOffset(mjd int) time.Duration {
	if !p.standard() {
		return 0
	}
	period := p.Period()
	off := (time.Duration(ReferenceMJD-mjd)*4*time.Minute + 2*time.Minute) % period
	if off < 0 {
		off += period
	}
	return off
}

// FirstTrackOffset 标准日历的偏移
func FirstTrackOffset(mjd int) time.Duration {
	return BIPMCalendar.FirstTrackOffset(mjd)
}

// NextStart 不早于 now 的下一次跟踪开始时刻
func (p BIPMPeriod) NextStart(now time.Time) time.Time {
	now = now.UTC()
	mjd := MJD(now)
	period := p.Period()
	day := FromMJD(mjd)
	t0 := day.Add(p.FirstTrackOffset(mjd))
	if now.Before(t0) {
		return t0
	}
	diff := now.Sub(t0)
	n := diff / period
	if diff%period > 0 {
		n++
	}
	if next := t0.Add(n * period); next.Before(day.Add(24 * time.Hour)) {
		return next
	}
	return FromMJD(mjd + 1).Add(p.FirstTrackOffset(mjd + 1))
}

// NextWindow 下一次跟踪的窗口
func (p BIPMPeriod) NextWindow(now time.Time) Window {
	return Window{Start: p.NextStart(now), Duration: p.Tracking}
}

// Trigger 在每次跟踪开始时触发
func (p BIPMPeriod) Trigger() *WindowTrigger {
	return &WindowTrigger{
		next: func(t time.Time) Window { return p.NextWindow(t.Add(time.Nanosecond)) },
		desc: "BIPM" + quartz.Sep + p.Period().String(),
	}
}
