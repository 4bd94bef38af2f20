package cggtts

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/15226124477/method"
	log "github.com/sirupsen/logrus"
)

var (
	ErrMissingMeasurements = fmt.Errorf("%w: missing measurements", ErrIncompleteTrack)
	ErrNotCentered         = fmt.Errorf("%w: not centered on track midpoint", ErrIncompleteTrack)
	ErrNonContiguous       = fmt.Errorf("%w: sampling gaps", ErrIncompleteTrack)
	ErrLinearRegression    = errors.New("linear regression failure")
)

// FitData 某一采样时刻的测量值, 时延单位 s, 角度单位 deg
type FitData struct {
	REFSV     float64
	REFSYS    float64
	MDTR      float64
	Elevation float64
	Azimuth   float64
	MDIO      *float64 // 模型电离层时延, 没有时按0
	MSIO      *float64 // 双频实测电离层时延
}

type sample struct {
	t    time.Time
	data FitData
}

// TrackFitter 单颗卫星在一个跟踪窗口内的采样缓存,
// 窗口结束后线性拟合成一条观测
type TrackFitter struct {
	samples []sample
}

// Sample 按时间先后追加
func (f *TrackFitter) Sample(t time.Time, d FitData) error {
	if n := len(f.samples); n > 0 && !t.After(f.samples[n-1].t) {
		return fmt.Errorf("sample at %s not after %s", t.UTC().Format(time.RFC3339), f.samples[n-1].t.UTC().Format(time.RFC3339))
	}
	f.samples = append(f.samples, sample{t: t, data: d})
	return nil
}

func (f *TrackFitter) Len() int {
	return len(f.samples)
}

// Reset 清空缓存
func (f *TrackFitter) Reset() {
	f.samples = f.samples[:0]
}

// Contiguous 相邻采样间隔都不超过 sampling
func (f *TrackFitter) Contiguous(sampling time.Duration) bool {
	for i := 1; i < len(f.samples); i++ {
		if f.samples[i].t.Sub(f.samples[i-1].t) > sampling {
			return false
		}
	}
	return true
}

// Fit 以窗口中点为参考做一次线性拟合.
// 采样数不足, 有间断或没有跨过中点时返回 ErrIncompleteTrack 类错误
func (f *TrackFitter) Fit(sv SV, w Window, ioe int, sampling time.Duration) (Track, error) {
	if sampling <= 0 {
		return Track{}, fmt.Errorf("sampling period %s", sampling)
	}
	expected := int(math.Ceil(w.Duration.Seconds() / sampling.Seconds()))
	if len(f.samples) < expected {
		return Track{}, fmt.Errorf("%w: %d of %d samples", ErrMissingMeasurements, len(f.samples), expected)
	}
	if !f.Contiguous(sampling) {
		return Track{}, ErrNonContiguous
	}
	mid := w.Start.Add(w.Duration / 2)
	first, last := f.samples[0].t, f.samples[len(f.samples)-1].t
	if !first.Before(mid) || !last.After(mid) {
		return Track{}, ErrNotCentered
	}

	// 横轴为相对中点的秒数, 截距即中点处的值
	xs := make([]float64, len(f.samples))
	for i, s := range f.samples {
		xs[i] = s.t.Sub(mid).Seconds()
	}
	column := func(get func(FitData) float64) []float64 {
		ys := make([]float64, len(f.samples))
		for i, s := range f.samples {
			ys[i] = get(s.data)
		}
		return ys
	}

	var data TrackData
	var err error
	if data.SRSV, data.REFSV, _, err = linearFit(xs, column(func(d FitData) float64 { return d.REFSV })); err != nil {
		return Track{}, fmt.Errorf("REFSV: %w", err)
	}
	if data.SRSYS, data.REFSYS, data.DSG, err = linearFit(xs, column(func(d FitData) float64 { return d.REFSYS })); err != nil {
		return Track{}, fmt.Errorf("REFSYS: %w", err)
	}
	if data.SMDT, data.MDTR, _, err = linearFit(xs, column(func(d FitData) float64 { return d.MDTR })); err != nil {
		return Track{}, fmt.Errorf("MDTR: %w", err)
	}
	if data.SMDI, data.MDIO, _, err = linearFit(xs, column(func(d FitData) float64 { return deref(d.MDIO) })); err != nil {
		return Track{}, fmt.Errorf("MDIO: %w", err)
	}
	data.IOE = ioe

	elevation, azimuth := f.attitude(mid)
	trk := NewTrack(sv, w, elevation, azimuth, data)

	if slices.ContainsFunc(f.samples, func(s sample) bool { return s.data.MSIO != nil }) {
		if slices.ContainsFunc(f.samples, func(s sample) bool { return s.data.MSIO == nil }) {
			return Track{}, fmt.Errorf("%w: MSIO missing in some samples", ErrMissingMeasurements)
		}
		smsi, msio, isg, err := linearFit(xs, column(func(d FitData) float64 { return *d.MSIO }))
		if err != nil {
			return Track{}, fmt.Errorf("MSIO: %w", err)
		}
		trk.Iono = NewIonosphericData(msio, smsi, isg)
	}
	log.Debugf("%s 拟合 %d 个采样: %s", sv, len(f.samples), w)
	return trk, nil
}

// attitude 中点处的仰角方位角, 有中点采样直接用, 否则相邻两点插值
func (f *TrackFitter) attitude(mid time.Time) (elevation, azimuth float64) {
	i := sort.Search(len(f.samples), func(i int) bool { return !f.samples[i].t.Before(mid) })
	if f.samples[i].t.Equal(mid) {
		return f.samples[i].data.Elevation, f.samples[i].data.Azimuth
	}
	a, b := f.samples[i-1], f.samples[i]
	r := mid.Sub(a.t).Seconds() / b.t.Sub(a.t).Seconds()
	elevation = a.data.Elevation + r*(b.data.Elevation-a.data.Elevation)

	// 方位角跨过 0/360 时走短的一侧
	d := b.data.Azimuth - a.data.Azimuth
	switch {
	case d > 180:
		d -= 360
	case d < -180:
		d += 360
	}
	azimuth = math.Mod(a.data.Azimuth+r*d+360, 360)
	return elevation, azimuth
}

// linearFit 最小二乘 y = slope*x + intercept, rms 为残差均方根
func linearFit(xs, ys []float64) (slope, intercept, rms float64, err error) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, 0, 0, ErrLinearRegression
	}
	mx, my := method.Average(xs), method.Average(ys)
	var sxx, sxy float64
	for i := range xs {
		sxx += (xs[i] - mx) * (xs[i] - mx)
		sxy += (xs[i] - mx) * (ys[i] - my)
	}
	if sxx == 0 {
		return 0, 0, 0, ErrLinearRegression
	}
	slope = sxy / sxx
	intercept = my - slope*mx
	var ss float64
	for i := range xs {
		r := ys[i] - (slope*xs[i] + intercept)
		ss += r * r
	}
	rms = math.Sqrt(ss / float64(len(xs)))
	for _, v := range []float64{slope, intercept, rms} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, ErrLinearRegression
		}
	}
	return slope, intercept, rms, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// SkyTracker 同时跟踪多颗卫星, 每个窗口结束时统一拟合
type SkyTracker struct {
	Sampling time.Duration
	fitters  map[SV]*TrackFitter
}

func NewSkyTracker(sampling time.Duration) *SkyTracker {
	return &SkyTracker{Sampling: sampling, fitters: make(map[SV]*TrackFitter)}
}

// Sample 记录一颗卫星的采样
func (s *SkyTracker) Sample(sv SV, t time.Time, d FitData) error {
	f, ok := s.fitters[sv]
	if !ok {
		f = &TrackFitter{}
		s.fitters[sv] = f
	}
	return f.Sample(t, d)
}

// Fit 对窗口内所有卫星拟合, 按卫星排序输出, 之后清空缓存.
// 拟合失败的卫星记为 TrackError, 上个窗口之后没有采样的卫星不再跟踪
func (s *SkyTracker) Fit(w Window, ioe map[SV]int) ([]Track, Diagnostics) {
	svs := make([]SV, 0, len(s.fitters))
	for sv, f := range s.fitters {
		if f.Len() == 0 {
			delete(s.fitters, sv)
			continue
		}
		svs = append(svs, sv)
	}
	slices.SortFunc(svs, func(a, b SV) int {
		if a.System != b.System {
			return int(a.System) - int(b.System)
		}
		return a.PRN - b.PRN
	})

	var tracks []Track
	var diags Diagnostics
	for i, sv := range svs {
		f := s.fitters[sv]
		trk, err := f.Fit(sv, w, ioe[sv], s.Sampling)
		f.Reset()
		if err != nil {
			diags = append(diags, &TrackError{Index: i, SV: sv, Err: err})
			continue
		}
		tracks = append(tracks, trk)
	}
	for _, d := range diags {
		log.Warning(d)
	}
	return tracks, diags
}
