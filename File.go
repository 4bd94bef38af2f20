package cggtts

import (
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
)

// New 空文件, 坐标系默认 ITRF, 时延未设置
func New() *CGGTTS {
	return &CGGTTS{
		Header: Header{APC: Coordinates{Frame: DefaultFrame}},
		Tracks: make([]Track, 0),
	}
}

// AddTrack 追加在末尾
func (c *CGGTTS) AddTrack(t Track) {
	c.Tracks = append(c.Tracks, t)
}

// RemoveTrack 删除第 i 条, 越界时返回 false
func (c *CGGTTS) RemoveTrack(i int) bool {
	if i < 0 || i >= len(c.Tracks) {
		return false
	}
	c.Tracks = append(c.Tracks[:i], c.Tracks[i+1:]...)
	return true
}

// SetDelay 替换系统时延
func (c *CGGTTS) SetDelay(d SystemDelay) {
	c.Header.Delay = d
}

// SupportsDualFrequency 有 IMS 或任一观测带电离层参数
func (c *CGGTTS) SupportsDualFrequency() bool {
	return c.dualFrequency()
}

// HasIonosphericParameters 至少一条观测带完整的电离层参数
func (c *CGGTTS) HasIonosphericParameters() bool {
	for _, t := range c.Tracks {
		if t.HasIono() {
			return true
		}
	}
	return false
}

// Constellation 所有观测的星座, 多于一个时为 SysMIXED, 没有观测时为0
func (c *CGGTTS) Constellation() gnss.System {
	var sys gnss.System
	for _, t := range c.Tracks {
		switch {
		case sys == 0:
			sys = t.SV.System
		case sys != t.SV.System:
			return gnss.SysMIXED
		}
	}
	return sys
}

// TracksFor 某个星座的观测
func (c *CGGTTS) TracksFor(sys gnss.System) []Track {
	out := make([]Track, 0)
	for _, t := range c.Tracks {
		if t.SV.System == sys {
			out = append(out, t)
		}
	}
	return out
}

// TracksForSV 某颗卫星的观测
func (c *CGGTTS) TracksForSV(sv SV) []Track {
	out := make([]Track, 0)
	for _, t := range c.Tracks {
		if t.SV == sv {
			out = append(out, t)
		}
	}
	return out
}

// FirstEpoch 第一条观测的开始时刻
func (c *CGGTTS) FirstEpoch() (time.Time, bool) {
	if len(c.Tracks) == 0 {
		return time.Time{}, false
	}
	return c.Tracks[0].Start, true
}

// LastEpoch 最后一条观测的结束时刻
func (c *CGGTTS) LastEpoch() (time.Time, bool) {
	if len(c.Tracks) == 0 {
		return time.Time{}, false
	}
	return c.Tracks[len(c.Tracks)-1].End(), true
}

// TotalDuration 第一条开始到最后一条结束
func (c *CGGTTS) TotalDuration() time.Duration {
	first, ok := c.FirstEpoch()
	if !ok {
		return 0
	}
	last, _ := c.LastEpoch()
	return last.Sub(first)
}

// FollowsBIPMTracking 所有观测都是 13 分钟
func (c *CGGTTS) FollowsBIPMTracking() bool {
	for _, t := range c.Tracks {
		if !t.FollowsBIPM() {
			return false
		}
	}
	return true
}

// CommonViewClass 有任一组合观测时为 ClassCombination
func (c *CGGTTS) CommonViewClass() CommonViewClass {
	for _, t := range c.Tracks {
		if t.Class == ClassCombination {
			return ClassCombination
		}
	}
	return ClassSingle
}
