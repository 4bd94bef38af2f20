package cggtts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDominant(t *testing.T) {
	assert.Equal(t, 960.0, dominant([]float64{960, 1920, 960}))
	assert.Equal(t, 1.0, dominant([]float64{2, 1}))
	assert.Zero(t, dominant(nil))
}

func TestStatistics(t *testing.T) {
	c, _, err := LoadFile(singleFixture)
	require.NoError(t, err)

	s := Statistics("GMSY8259.568", c)
	assert.Equal(t, 10, s.Tracks)
	assert.Equal(t, map[gnss.System]int{gnss.SysGPS: 10}, s.PerConstellation)
	assert.Equal(t, 5, s.Epochs)
	assert.Equal(t, 780*time.Second, s.TrackLength)
	assert.Equal(t, 960*time.Second, s.Interval)
	assert.Equal(t, FromMJD(59568).Add(10*time.Minute), s.Start)
	assert.Equal(t, FromMJD(59568).Add(90*time.Minute), s.End)
	assert.InDelta(t, 6.0, s.AllEpoch, 1e-9)
	assert.InDelta(t, 1.0, s.LostEpoch, 1e-9)
	assert.InDelta(t, 83.33, s.Integrity, 1e-9)
	assert.InDelta(t, -456.9, s.MeanREFSYS, 1e-3)
	assert.InDelta(t, 27.05, s.MeanElevation, 0.1)
	assert.InDelta(t, 47.2469, s.Antenna.B, 1e-3)
	assert.InDelta(t, 5.9895, s.Antenna.L, 1e-3)

	require.Len(t, s.Gaps, 1)
	gap := s.Gaps[0]
	assert.Equal(t, 1, gap.Key)
	assert.Equal(t, "2021-12-20 00:58:00", gap.StartTime)
	assert.Equal(t, "2021-12-20 01:30:00", gap.EndTime)
	assert.InDelta(t, 1.0, gap.LostCount, 1e-9)
}

func TestStatisticsSmallFiles(t *testing.T) {
	s := Statistics("empty", New())
	assert.Zero(t, s.Epochs)
	assert.Empty(t, s.Gaps)
	assert.Zero(t, s.Antenna.B)

	c := New()
	c.AddTrack(NewTrack(SV{System: gnss.SysGAL, PRN: 3}, windowAt(59568, 0), 30, 90, TrackData{}))
	c.AddTrack(NewTrack(SV{System: gnss.SysGPS, PRN: 5}, windowAt(59568, 0), 40, 90, TrackData{}))
	s = Statistics("one", c)
	assert.Equal(t, 1, s.Epochs)
	assert.InDelta(t, 1.0, s.AllEpoch, 1e-9)
	assert.InDelta(t, 100.0, s.Integrity, 1e-9)
	assert.Equal(t, 1, s.PerConstellation[gnss.SysGAL])
	assert.InDelta(t, 35.0, s.MeanElevation, 1e-9)
}

func TestSummaryReports(t *testing.T) {
	c, _, err := LoadFile(dualFixture)
	require.NoError(t, err)
	s := Statistics("GZSY8259.568", c)
	dir := t.TempDir()

	xlsxPath := filepath.Join(dir, "GZSY8259.xlsx")
	require.NoError(t, s.ToExcelFile(xlsxPath))
	xlsx, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer xlsx.Close()

	name, err := xlsx.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "GZSY8259.568", name)
	constellation, err := xlsx.GetCellValue("Sheet1", "C2")
	require.NoError(t, err)
	assert.Equal(t, "GPS", constellation)

	rows, err := xlsx.GetRows("Tracks")
	require.NoError(t, err)
	require.Len(t, rows, 11)
	assert.Equal(t, "SAT", rows[0][0])
	assert.Equal(t, "G05", rows[1][0])
	assert.Equal(t, "250", rows[1][5])

	header, err := xlsx.GetRows("Header")
	require.NoError(t, err)
	assert.Equal(t, []string{"LAB", "SY"}, header[4])

	htmlPath := filepath.Join(dir, "GZSY8259.lost.html")
	require.NoError(t, s.ToLostReport(htmlPath))
	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "GZSY8259.568")
	assert.Contains(t, string(html), "2021-12-20 00:58:00")

	txtPath := filepath.Join(dir, "GZSY8259.lost.txt")
	s.ToTextReport(txtPath)
	txt, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	lines := strings.Split(string(txt), "\r\n")
	assert.Equal(t, "完整率:83.33%", lines[6])
	assert.Equal(t, "2021-12-20 00:58:00 ~ 2021-12-20 01:30:00 #WINDOW_LOST 1", lines[len(lines)-1])
}
