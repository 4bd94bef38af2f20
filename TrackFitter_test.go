package cggtts

import (
	"math"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fitSampling = 30 * time.Second

var fitWindow = Window{Start: FromMJD(59568).Add(10 * time.Minute), Duration: BIPMTrackingDuration}

// fillFitter 从窗口开始后 offset 起每 30s 一个采样
func fillFitter(t *testing.T, f *TrackFitter, offset time.Duration, n int, msio bool) {
	t.Helper()
	mid := fitWindow.Start.Add(fitWindow.Duration / 2)
	for k := 0; k < n; k++ {
		at := fitWindow.Start.Add(offset + time.Duration(k)*fitSampling)
		dt := at.Sub(mid).Seconds()
		mdio := 4e-9 + 1e-12*dt
		d := FitData{
			REFSV:     1e-6 + 2e-12*dt,
			REFSYS:    -3e-8 + 5e-13*dt,
			MDTR:      8e-9 - 1e-12*dt,
			MDIO:      &mdio,
			Elevation: 10 + float64(k),
			Azimuth:   math.Mod(335+2*float64(k), 360),
		}
		if msio {
			v := 6e-9 + 3e-12*dt
			d.MSIO = &v
		}
		require.NoError(t, f.Sample(at, d))
	}
}

func TestTrackFitterFit(t *testing.T) {
	var f TrackFitter
	fillFitter(t, &f, 15*time.Second, 26, false)
	require.True(t, f.Contiguous(fitSampling))

	sv := SV{System: gnss.SysGPS, PRN: 5}
	trk, err := f.Fit(sv, fitWindow, 42, fitSampling)
	require.NoError(t, err)
	assert.Equal(t, sv, trk.SV)
	assert.Equal(t, fitWindow.Start, trk.Start)
	assert.Equal(t, BIPMTrackingDuration, trk.Duration)
	assert.Equal(t, 42, trk.Data.IOE)
	assert.InDelta(t, 1e-6, trk.Data.REFSV, 1e-15)
	assert.InDelta(t, 2e-12, trk.Data.SRSV, 1e-18)
	assert.InDelta(t, -3e-8, trk.Data.REFSYS, 1e-15)
	assert.InDelta(t, 5e-13, trk.Data.SRSYS, 1e-18)
	assert.InDelta(t, 0, trk.Data.DSG, 1e-15)
	assert.InDelta(t, 8e-9, trk.Data.MDTR, 1e-15)
	assert.InDelta(t, -1e-12, trk.Data.SMDT, 1e-18)
	assert.InDelta(t, 4e-9, trk.Data.MDIO, 1e-15)
	assert.InDelta(t, 1e-12, trk.Data.SMDI, 1e-18)
	assert.Nil(t, trk.Iono)

	// 中点落在第 12, 13 个采样之间, 方位角跨过 0
	assert.InDelta(t, 22.5, trk.Elevation, 1e-9)
	assert.InDelta(t, 0, trk.Azimuth, 1e-9)
	assert.NoError(t, trk.Validate())
}

func TestTrackFitterMidpointSample(t *testing.T) {
	var f TrackFitter
	fillFitter(t, &f, 0, 27, true)
	trk, err := f.Fit(SV{System: gnss.SysGAL, PRN: 3}, fitWindow, 0, fitSampling)
	require.NoError(t, err)
	assert.InDelta(t, 23, trk.Elevation, 1e-9)
	assert.InDelta(t, 1, trk.Azimuth, 1e-9)
	assert.Equal(t, "E1", trk.FRC)

	require.True(t, trk.HasIono())
	msio, smsi, isg, ok := trk.Iono.Values()
	require.True(t, ok)
	assert.InDelta(t, 6e-9, msio, 1e-15)
	assert.InDelta(t, 3e-12, smsi, 1e-18)
	assert.InDelta(t, 0, isg, 1e-15)
}

func TestTrackFitterIncomplete(t *testing.T) {
	sv := SV{System: gnss.SysGPS, PRN: 13}

	var f TrackFitter
	fillFitter(t, &f, 15*time.Second, 25, false)
	_, err := f.Fit(sv, fitWindow, 0, fitSampling)
	assert.ErrorIs(t, err, ErrMissingMeasurements)
	assert.ErrorIs(t, err, ErrIncompleteTrack)

	f.Reset()
	assert.Equal(t, 0, f.Len())
	fillFitter(t, &f, -800*time.Second, 26, false)
	_, err = f.Fit(sv, fitWindow, 0, fitSampling)
	assert.ErrorIs(t, err, ErrNotCentered)

	f.Reset()
	fillFitter(t, &f, 0, 10, false)
	fillFitter(t, &f, 11*fitSampling, 16, false)
	assert.False(t, f.Contiguous(fitSampling))
	_, err = f.Fit(sv, fitWindow, 0, fitSampling)
	assert.ErrorIs(t, err, ErrNonContiguous)
	assert.ErrorIs(t, err, ErrIncompleteTrack)

	f.Reset()
	fillFitter(t, &f, 15*time.Second, 26, true)
	v := 1e-9
	last := fitWindow.Start.Add(15*time.Second + 26*fitSampling)
	require.NoError(t, f.Sample(last, FitData{MSIO: &v}))
	require.NoError(t, f.Sample(last.Add(fitSampling), FitData{}))
	_, err = f.Fit(sv, fitWindow, 0, fitSampling)
	assert.ErrorIs(t, err, ErrMissingMeasurements)

	_, err = f.Fit(sv, fitWindow, 0, 0)
	assert.Error(t, err)
}

func TestTrackFitterChronological(t *testing.T) {
	var f TrackFitter
	require.NoError(t, f.Sample(fitWindow.Start, FitData{}))
	assert.Error(t, f.Sample(fitWindow.Start, FitData{}))
	assert.Error(t, f.Sample(fitWindow.Start.Add(-time.Second), FitData{}))
	assert.Equal(t, 1, f.Len())
}

func TestLinearFit(t *testing.T) {
	slope, intercept, rms, err := linearFit([]float64{-1, 0, 1}, []float64{1, 0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0, slope, 1e-12)
	assert.InDelta(t, 2.0/3, intercept, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/9), rms, 1e-12)

	_, _, _, err = linearFit([]float64{1, 1}, []float64{2, 3})
	assert.ErrorIs(t, err, ErrLinearRegression)
	_, _, _, err = linearFit([]float64{1}, []float64{2})
	assert.ErrorIs(t, err, ErrLinearRegression)
	_, _, _, err = linearFit([]float64{0, 1}, []float64{math.Inf(1), 0})
	assert.ErrorIs(t, err, ErrLinearRegression)
}

func TestSkyTracker(t *testing.T) {
	sky := NewSkyTracker(fitSampling)
	g05 := SV{System: gnss.SysGPS, PRN: 5}
	r24 := SV{System: gnss.SysGLO, PRN: 24}
	mid := fitWindow.Start.Add(fitWindow.Duration / 2)
	for k := 0; k < 27; k++ {
		at := fitWindow.Start.Add(time.Duration(k) * fitSampling)
		dt := at.Sub(mid).Seconds()
		require.NoError(t, sky.Sample(r24, at, FitData{REFSYS: 1e-9 * dt, Elevation: 40, Azimuth: 90}))
		if k < 5 {
			require.NoError(t, sky.Sample(g05, at, FitData{Elevation: 20, Azimuth: 10}))
		}
	}

	tracks, diags := sky.Fit(fitWindow, map[SV]int{r24: 7})
	require.Len(t, tracks, 1)
	assert.Equal(t, r24, tracks[0].SV)
	assert.Equal(t, 7, tracks[0].Data.IOE)
	assert.Equal(t, "L1P", tracks[0].FRC)
	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0], ErrMissingMeasurements)

	tracks, diags = sky.Fit(fitWindow, nil)
	assert.Empty(t, tracks)
	assert.Empty(t, diags)
}
