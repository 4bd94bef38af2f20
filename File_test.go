package cggtts

import (
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowAt(mjd int, offset time.Duration) Window {
	return Window{Start: FromMJD(mjd).Add(offset), Duration: BIPMTrackingDuration}
}

func TestFileTracks(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultFrame, c.Header.APC.Frame)
	assert.Equal(t, gnss.System(0), c.Constellation())
	_, ok := c.FirstEpoch()
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), c.TotalDuration())

	g05 := SV{System: gnss.SysGPS, PRN: 5}
	c.AddTrack(NewTrack(g05, windowAt(59568, 2*time.Minute), 30, 90, TrackData{}))
	c.AddTrack(NewTrack(SV{System: gnss.SysGPS, PRN: 13}, windowAt(59568, 2*time.Minute), 40, 180, TrackData{}))
	c.AddTrack(NewTrack(g05, windowAt(59568, 18*time.Minute), 35, 95, TrackData{}))
	assert.Equal(t, gnss.SysGPS, c.Constellation())
	assert.Len(t, c.TracksFor(gnss.SysGPS), 3)
	assert.Len(t, c.TracksForSV(g05), 2)
	assert.True(t, c.FollowsBIPMTracking())
	assert.Equal(t, ClassSingle, c.CommonViewClass())

	first, ok := c.FirstEpoch()
	require.True(t, ok)
	assert.Equal(t, FromMJD(59568).Add(2*time.Minute), first)
	last, ok := c.LastEpoch()
	require.True(t, ok)
	assert.Equal(t, FromMJD(59568).Add(31*time.Minute), last)
	assert.Equal(t, 29*time.Minute, c.TotalDuration())

	c.AddTrack(NewTrack(SV{System: gnss.SysGAL, PRN: 99}, windowAt(59568, 34*time.Minute), 50, 10, TrackData{}))
	assert.Equal(t, gnss.SysMIXED, c.Constellation())
	assert.Equal(t, ClassCombination, c.CommonViewClass())
	assert.Empty(t, c.TracksFor(gnss.SysGLO))

	assert.True(t, c.RemoveTrack(3))
	assert.False(t, c.RemoveTrack(3))
	assert.False(t, c.RemoveTrack(-1))
	assert.Equal(t, gnss.SysGPS, c.Constellation())

	c.Tracks[0].Duration = DefaultTrackingDuration
	assert.False(t, c.FollowsBIPMTracking())
}

func TestFileDualFrequency(t *testing.T) {
	c := New()
	trk := NewTrack(SV{System: gnss.SysGPS, PRN: 5}, windowAt(59568, 0), 30, 90, TrackData{})
	c.AddTrack(trk)
	assert.False(t, c.SupportsDualFrequency())

	c.Tracks[0].Iono = &IonosphericData{MSIO: new(float64)}
	assert.False(t, c.HasIonosphericParameters())

	c.Tracks[0].Iono = NewIonosphericData(1e-9, 0, 1e-10)
	assert.True(t, c.HasIonosphericParameters())
	assert.True(t, c.SupportsDualFrequency())

	c.Tracks[0].Iono = nil
	c.Header.IMS = &Hardware{Manufacturer: "Septentrio", Model: "POLARX5TR", SerialNumber: "1", Year: 2019, Release: "1"}
	assert.True(t, c.SupportsDualFrequency())
	assert.False(t, c.HasIonosphericParameters())
}

func TestFileName(t *testing.T) {
	c := New()
	c.Header.NbChannels = 1
	assert.Equal(t, "GSSY82YY.YYY", c.FileName("SY", "82"))

	c.AddTrack(NewTrack(SV{System: gnss.SysGPS, PRN: 5}, windowAt(59568, 0), 30, 90, TrackData{}))
	assert.Equal(t, "GSSY8259.568", c.FileName("SY", "82"))

	c.Header.NbChannels = 12
	c.Header.Lab = "OPMT"
	c.Tracks[0].Start = FromMJD(60258)
	assert.Equal(t, "GMOPR160.258", c.FileName("", "R1"))

	gal := New()
	gal.AddTrack(NewTrack(SV{System: gnss.SysGAL, PRN: 3}, windowAt(60258, 0), 30, 90, TrackData{}))
	gal.Tracks[0].Iono = NewIonosphericData(0, 0, 0)
	assert.Equal(t, "EZGTR60.258", gal.FileName("GT", "R"))
	assert.Equal(t, "EZGTR560.258", gal.FileName("GT", "R5"))
}

func TestParseFileName(t *testing.T) {
	info, err := ParseFileName("/data/cv/GZSY8259.568")
	require.NoError(t, err)
	assert.Equal(t, FileNameInfo{System: gnss.SysGPS, Kind: 'Z', Station: "SY82", MJD: 59568}, info)

	info, err = ParseFileName("EZGTR60.258")
	require.NoError(t, err)
	assert.Equal(t, gnss.SysGAL, info.System)
	assert.Equal(t, "GTR", info.Station)
	assert.Equal(t, 60258, info.MJD)

	_, err = ParseFileName("GZSY8259.56")
	assert.Error(t, err)
	_, err = ParseFileName("report.xlsx")
	assert.Error(t, err)
}
