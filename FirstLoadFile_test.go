package cggtts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const (
	singleFixture = "testdata/GMSY8259.568"
	dualFixture   = "testdata/GZSY8259.568"
)

var sampleHeader = []string{
	"CGGTTS GENERIC DATA FORMAT VERSION = 2E",
	"REV DATE = 2014-02-20",
	"RCVR = GORGYTIMING SYREF25 18259999 2018 v00",
	"CH = 12",
	"LAB = SY82",
	"X =  4314137.334 m",
	"Y =   452632.813 m",
	"Z =  4660706.403 m",
	"FRAME = ITRF",
	"COMMENTS = NO COMMENTS",
	"CAB DLY = 000.0 ns",
	"REF DLY = 000.0 ns",
	"REF = REF(SY82)",
}

// buildFile 计算 CKSUM 后拼成完整文件
func buildFile(header []string, tracks ...string) string {
	var b strings.Builder
	for _, line := range header {
		b.WriteString(line + "\n")
	}
	b.WriteString(cksumPrefix + FormatChecksum(Checksum(strings.Join(header, "")+cksumPrefix)) + "\n\n")
	b.WriteString(labelLine + "\n" + unitsLine + "\n")
	for _, t := range tracks {
		b.WriteString(t + "\n")
	}
	return b.String()
}

func withLine(header []string, i int, line string) []string {
	out := append([]string(nil), header[:i]...)
	out = append(out, line)
	return append(out, header[i:]...)
}

func readFixture(t *testing.T, path string) string {
	t.Helper()
	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(bs)
}

func TestParseSampleHeader(t *testing.T) {
	c, diags, err := ParseString(buildFile(sampleHeader))
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.True(t, strings.HasSuffix(buildFile(sampleHeader), "CKSUM = C7\n\n"+labelLine+"\n"+unitsLine+"\n"))

	h := c.Header
	assert.Equal(t, time.Date(2014, time.February, 20, 0, 0, 0, 0, time.UTC), h.ReleaseDate)
	assert.Equal(t, Hardware{Manufacturer: "GORGYTIMING", Model: "SYREF25", SerialNumber: "18259999", Year: 2018, Release: "v00"}, h.Receiver)
	assert.Equal(t, 12, h.NbChannels)
	assert.Nil(t, h.IMS)
	assert.Equal(t, "SY82", h.Lab)
	assert.InDelta(t, 4314137.334, h.APC.X, 1e-6)
	assert.InDelta(t, 452632.813, h.APC.Y, 1e-6)
	assert.InDelta(t, 4660706.403, h.APC.Z, 1e-6)
	assert.Equal(t, "ITRF", h.APC.Frame)
	assert.Empty(t, h.Comments)
	assert.False(t, h.Delay.Calibrated.IsSet())
	assert.Equal(t, CustomRef("REF(SY82)"), h.Reference)
	assert.Empty(t, c.Tracks)
}

func TestLoadSingleFrequency(t *testing.T) {
	c, diags, err := LoadFile(singleFixture)
	require.NoError(t, err)
	assert.Empty(t, diags)

	h := c.Header
	assert.Equal(t, "Septentrio", h.Receiver.Manufacturer)
	assert.Equal(t, "5.4.0", h.Receiver.Release)
	assert.Nil(t, h.IMS)
	assert.Equal(t, "SY", h.Lab)
	assert.InDelta(t, 4314137.334, h.APC.X, 1e-6)
	assert.Equal(t, UTCk("SY"), h.Reference)

	assert.Equal(t, System, h.Delay.Calibrated.Kind)
	assert.Equal(t, gnss.SysGPS, h.Delay.Calibrated.Constellation)
	assert.InDelta(t, 390.9, h.Delay.Calibrated.Nanos, 1e-9)
	assert.Empty(t, h.Delay.Calibrated.Info)
	assert.InDelta(t, 155.2, h.Delay.Cable, 1e-9)
	assert.InDelta(t, 546.1, h.Delay.Value(), 1e-9)

	require.Len(t, c.Tracks, 10)
	assert.False(t, c.HasIonosphericParameters())
	assert.False(t, c.SupportsDualFrequency())
	first := c.Tracks[0]
	assert.Equal(t, SV{System: gnss.SysGPS, PRN: 5}, first.SV)
	assert.InDelta(t, 25.0, first.Elevation, 1e-9)
	assert.InDelta(t, 120.0, first.Azimuth, 1e-9)
	assert.InDelta(t, -456.7e-9, first.Data.REFSYS, 1e-15)
	assert.Equal(t, 71, first.Data.IOE)
}

func TestLoadDualFrequency(t *testing.T) {
	c, diags, err := LoadFile(dualFixture)
	require.NoError(t, err)
	assert.Empty(t, diags)

	h := c.Header
	require.NotNil(t, h.IMS)
	assert.Equal(t, "POLARX5TR", h.IMS.Model)
	assert.Equal(t, []string{"dual frequency sample"}, h.Comments)

	sd := h.Delay
	assert.Equal(t, Internal, sd.Calibrated.Kind)
	assert.Equal(t, "C1", sd.Calibrated.Code)
	assert.Equal(t, "1015-2024", sd.Calibrated.Info)
	require.Len(t, sd.Secondary, 1)
	assert.Equal(t, "P2", sd.Secondary[0].Code)
	assert.InDelta(t, 36.0, sd.Secondary[0].Nanos, 1e-9)
	assert.InDelta(t, 12.5, sd.Reference, 1e-9)
	assert.InDelta(t, 202.3, sd.Value(), 1e-9)
	assert.True(t, sd.Trusted())

	id, err := sd.Calibrated.CalibrationID()
	require.NoError(t, err)
	assert.Equal(t, CalibrationID{Process: 1015, Year: 2024}, *id)

	require.Len(t, c.Tracks, 10)
	assert.True(t, c.HasIonosphericParameters())
	msio, _, isg, ok := c.Tracks[9].Iono.Values()
	require.True(t, ok)
	assert.InDelta(t, 1.6e-9, msio, 1e-15)
	assert.InDelta(t, 0.8e-9, isg, 1e-15)
}

func TestParseRevision(t *testing.T) {
	text := strings.Replace(buildFile(sampleHeader), "VERSION = 2E", "VERSION = 2D", 1)
	c, _, err := ParseString(text)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrUnsupportedRevision)

	_, _, err = ParseString("RINEX VERSION / TYPE\n")
	assert.ErrorIs(t, err, ErrUnsupportedRevision)

	_, _, err = ParseString("")
	assert.ErrorIs(t, err, ErrUnsupportedRevision)
}

func TestParseUnknownField(t *testing.T) {
	text := buildFile(withLine(sampleHeader, 4, "ANT = NONE"))

	_, _, err := ParseString(text)
	assert.ErrorIs(t, err, ErrUnknownHeaderField)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 5, perr.Line)

	c, diags, err := ParseString(text, WithLenient())
	require.NoError(t, err)
	assert.True(t, diags.Has(ErrUnknownHeaderField))
	assert.False(t, diags.Has(ErrChecksumMismatch))
	assert.Equal(t, "SY82", c.Header.Lab)
}

func TestParseMalformedHeader(t *testing.T) {
	for _, line := range []string{"X = north", "REV DATE = 20/02/2014", "CAB DLY = short", "INT DLY = lots"} {
		_, _, err := ParseString(buildFile(withLine(sampleHeader, 4, line)), WithLenient())
		assert.ErrorIs(t, err, ErrMalformedHeader, line)
	}
}

func TestParseIncompleteHardware(t *testing.T) {
	tests := []struct {
		rcvr string
		ch   string
		want Hardware
		nbCh int
		bad  int
	}{
		{"RCVR = GORGYTIMING", "CH = 12", Hardware{Manufacturer: "GORGYTIMING"}, 12, 1},
		{"RCVR = GTR51 2204005 1.12.0", "CH = twelve", Hardware{Manufacturer: "GTR51", Model: "2204005", SerialNumber: "1.12.0"}, 0, 2},
		{"RCVR = Septentrio POLARX5TR 3056123 2019", "CH = -3", Hardware{Manufacturer: "Septentrio", Model: "POLARX5TR", SerialNumber: "3056123", Year: 2019}, 0, 2},
		{"RCVR = Septentrio POLARX5TR 3056123 MMXIX 5.4.0", "CH = 0", Hardware{Manufacturer: "Septentrio", Model: "POLARX5TR", SerialNumber: "3056123", Release: "5.4.0"}, 0, 1},
		{"RCVR = ? ? ? ? ?", "CH = 0", Hardware{}, 0, 0},
		{"RCVR = Trimble Navigation NetR9 5035K69749 2015 ?", "CH = 440", Hardware{Manufacturer: "Trimble Navigation", Model: "NetR9", SerialNumber: "5035K69749", Year: 2015}, 440, 0},
	}
	for _, tt := range tests {
		header := append([]string(nil), sampleHeader...)
		header[2] = tt.rcvr
		header[3] = tt.ch
		c, diags, err := ParseString(buildFile(header))
		require.NoError(t, err, tt.rcvr)
		assert.Equal(t, tt.want, c.Header.Receiver, tt.rcvr)
		assert.Equal(t, tt.nbCh, c.Header.NbChannels, tt.ch)
		assert.Equal(t, tt.bad, diags.Count(ErrMalformedHeader), tt.rcvr)
		assert.Equal(t, "SY82", c.Header.Lab)
	}

	header := withLine(sampleHeader, 4, "IMS = Septentrio POLARX5TR")
	c, diags, err := ParseString(buildFile(header))
	require.NoError(t, err)
	require.NotNil(t, c.Header.IMS)
	assert.Equal(t, "POLARX5TR", c.Header.IMS.Model)
	assert.Equal(t, 1, diags.Count(ErrMalformedHeader))
}

func TestParseNoCommentsSentinel(t *testing.T) {
	c, _, err := ParseString(buildFile(sampleHeader))
	require.NoError(t, err)
	assert.Nil(t, c.Header.Comments)

	header := withLine(sampleHeader, 10, "COMMENTS = second line")
	c, diags, err := ParseString(buildFile(header))
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{noComments, "second line"}, c.Header.Comments)
}

func TestParseMissingChecksum(t *testing.T) {
	text := strings.Join(sampleHeader, "\n") + "\n"
	c, diags, err := ParseString(text)
	require.NoError(t, err)
	assert.True(t, diags.Has(ErrMalformedHeader))
	assert.Equal(t, "SY82", c.Header.Lab)
}

func TestParseChecksumMismatch(t *testing.T) {
	text := readFixture(t, singleFixture)

	c, diags, err := ParseString(strings.Replace(text, "L1C C4", "L1C 00", 1))
	require.NoError(t, err)
	assert.Len(t, c.Tracks, 10)
	require.Equal(t, 1, diags.Count(ErrChecksumMismatch))
	var cerr *ChecksumError
	require.True(t, errors.As(diags[0], &cerr))
	assert.Equal(t, 20, cerr.Line)
	assert.Equal(t, byte(0x00), cerr.Got)
	assert.Equal(t, byte(0xC4), cerr.Want)

	_, diags, err = ParseString(strings.Replace(text, "CKSUM = 64", "CKSUM = 65", 1))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.True(t, errors.As(diags[0], &cerr))
	assert.Equal(t, 0, cerr.Line)
	assert.Equal(t, byte(0x64), cerr.Want)
}

func TestParseMalformedTrack(t *testing.T) {
	lines := strings.Split(readFixture(t, singleFixture), "\n")
	lines[19] = "G05 99 59568 001000 garbage"
	text := strings.Join(lines, "\n")

	c, _, err := ParseString(text)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrMalformedTrackLine)

	c, diags, err := ParseString(text, WithSkipMalformed())
	require.NoError(t, err)
	assert.Len(t, c.Tracks, 9)
	assert.Equal(t, 1, diags.Count(ErrMalformedTrackLine))
}

func TestParseOutOfRangeTrack(t *testing.T) {
	w := BIPMCalendar.NextWindow(FromMJD(59568))
	trk := NewTrack(SV{System: gnss.SysGPS, PRN: 7}, w, 95, 10, TrackData{})
	c, diags, err := ParseString(buildFile(sampleHeader, trk.String()))
	require.NoError(t, err)
	require.Len(t, c.Tracks, 1)
	require.Len(t, diags, 1)
	var terr *TrackError
	require.True(t, errors.As(diags[0], &terr))
	assert.Equal(t, 0, terr.Index)
	assert.InDelta(t, 95.0, c.Tracks[0].Elevation, 1e-9)
}

func TestParseTotalDelay(t *testing.T) {
	header := withLine(sampleHeader, 10, "INT DLY = 34.6 ns (GPS C1)     CAL_ID = NA")
	header = withLine(header, 11, "TOT DLY = 250.0 ns (GPS)")
	header = withLine(header, 12, "CAL_ID = 12-2023")
	c, diags, err := ParseString(buildFile(header))
	require.NoError(t, err)
	assert.Empty(t, diags)

	v, ok := c.Header.Delay.Total()
	require.True(t, ok)
	assert.InDelta(t, 250.0, v, 1e-9)
	assert.InDelta(t, 250.0, c.Header.Delay.Value(), 1e-9)
	assert.Equal(t, "12-2023", c.Header.Delay.Calibrated.Info)
}

func TestParseEncoding(t *testing.T) {
	header := append([]string(nil), sampleHeader...)
	header[9] = "COMMENTS = station \xe0 Paris"
	text := buildFile(header)

	c, diags, err := ParseString(text, WithEncoding(charmap.ISO8859_1))
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"station à Paris"}, c.Header.Comments)

	out, _, err := Marshal(c, WithEncoding(charmap.ISO8859_1))
	require.NoError(t, err)
	assert.Contains(t, string(out), "COMMENTS = station \xe0 Paris\n")
}

func TestLoadFiles(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.568")
	results := LoadFiles([]string{dualFixture, singleFixture, missing}, 2)
	require.Len(t, results, 3)

	assert.Equal(t, dualFixture, results[0].Path)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].File.HasIonosphericParameters())

	assert.Equal(t, singleFixture, results[1].Path)
	require.NoError(t, results[1].Err)
	assert.False(t, results[1].File.HasIonosphericParameters())

	assert.Error(t, results[2].Err)
	assert.Nil(t, results[2].File)
}
