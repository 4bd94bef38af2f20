package cggtts

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/15226124477/coord"
	"github.com/15226124477/method"
	"github.com/de-bkg/gognss/pkg/gnss"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const reportLayout = "2006-01-02 15:04:05"

// Summary 单个文件的统计结果
type Summary struct {
	Name             string
	Tracks           int
	PerConstellation map[gnss.System]int
	Start            time.Time // 第一个观测窗口
	End              time.Time // 最后一个观测窗口
	TrackLength      time.Duration
	Interval         time.Duration // 相邻窗口的间隔 (众数)
	Epochs           int           // 不同的窗口数
	AllEpoch         float64       // 应有窗口数
	LostEpoch        float64
	Integrity        float64 // 完整率 %
	MeanREFSYS       float64 // ns
	MeanElevation    float64 // deg
	Antenna          coord.CoordinateBLH
	Gaps             []coord.LostInterval

	file *CGGTTS
}

// dominant 出现次数最多的值, 次数相同取较小的
func dominant(values []float64) float64 {
	counts, ok := method.ListCount(values).(map[float64]int)
	if !ok || len(counts) == 0 {
		return 0
	}
	best, bestCount := 0.0, 0
	for k, v := range counts {
		if v > bestCount || (v == bestCount && k < best) {
			best, bestCount = k, v
		}
	}
	return best
}

// Statistics 统计观测窗口的完整性和基本信息
func Statistics(name string, c *CGGTTS) *Summary {
	s := &Summary{
		Name:             name,
		Tracks:           len(c.Tracks),
		PerConstellation: make(map[gnss.System]int),
		Gaps:             make([]coord.LostInterval, 0),
		file:             c,
	}
	s.Antenna = antennaBLH(c.Header.APC)
	if len(c.Tracks) == 0 {
		return s
	}

	starts := make([]time.Time, 0, len(c.Tracks))
	lengths := make([]float64, 0, len(c.Tracks))
	refsys := make([]float64, 0, len(c.Tracks))
	elevations := make([]float64, 0, len(c.Tracks))
	for _, t := range c.Tracks {
		s.PerConstellation[t.SV.System]++
		starts = append(starts, t.Start)
		lengths = append(lengths, t.Duration.Seconds())
		refsys = append(refsys, t.Data.REFSYS*1e9)
		elevations = append(elevations, t.Elevation)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	starts = slices.CompactFunc(starts, func(a, b time.Time) bool { return a.Equal(b) })

	s.Epochs = len(starts)
	s.Start = starts[0]
	s.End = starts[len(starts)-1]
	s.TrackLength = time.Duration(dominant(lengths)) * time.Second
	s.MeanREFSYS = method.Decimal(method.Average(refsys), 3)
	s.MeanElevation = method.Decimal(method.Average(elevations), 1)

	intervals := make([]float64, 0, len(starts))
	for i := 1; i < len(starts); i++ {
		intervals = append(intervals, starts[i].Sub(starts[i-1]).Seconds())
	}
	sample := dominant(intervals)
	s.Interval = time.Duration(sample) * time.Second
	if sample <= 0 {
		s.AllEpoch = 1
		s.Integrity = 100
		return s
	}

	key := 1
	for i, v := range intervals {
		if v <= sample {
			continue
		}
		s.Gaps = append(s.Gaps, coord.LostInterval{
			Key:       key,
			StartTime: starts[i].UTC().Format(reportLayout),
			EndTime:   starts[i+1].UTC().Format(reportLayout),
			LostCount: method.Decimal(v/sample-1, 2),
		})
		key++
	}
	s.AllEpoch = method.Decimal(s.End.Sub(s.Start).Seconds()/sample+1, 2)
	s.LostEpoch = method.Decimal(s.AllEpoch-float64(s.Epochs), 2)
	s.Integrity = method.Decimal(100*float64(s.Epochs)/s.AllEpoch, 2)
	log.Debug(name, " 完整率:", s.Integrity, "%")
	return s
}

// antennaBLH ECEF 转大地坐标, 坐标为零时不转换
func antennaBLH(apc Coordinates) coord.CoordinateBLH {
	if apc.X == 0 && apc.Y == 0 {
		return coord.CoordinateBLH{}
	}
	pos := coord.Coordinate{ConvertBefore: coord.XYZ, ConvertAfter: coord.BLH}
	pos.CoordinateXYZ = coord.CoordinateXYZ{X: apc.X, Y: apc.Y, Z: apc.Z}
	pos.XYZ2BLH()
	return pos.CoordinateBLH
}

const lostTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
h1, table {
margin-left:auto;
margin-right:auto;
width: 40%;
border-collapse: collapse;
}
th, td {
border: 1px solid #ddd;
padding: 8px;
text-align: left;
}
th {
background-color: #f2f2f2;
}
tr:nth-child(even) {
background-color: #f2f2f2;
}
</style>
</head>
<body>
	<h1>文件信息</h1>
	<table border="1">
		<tr><th>文件名</th><th>{{ .Name }}</th></tr>
		<tr><th>第一个窗口</th><th>{{ .Start }}</th></tr>
		<tr><th>最后一个窗口</th><th>{{ .End }}</th></tr>
		<tr><th>采集总时长</th><th>{{ .Duration }}h</th></tr>
		<tr><th>应有窗口数</th><th>{{ .AllEpoch }}</th></tr>
		<tr><th>理论丢失数</th><th>{{ .LostEpoch }}</th></tr>
		<tr><th>实际窗口数</th><th>{{ .Epoch }}</th></tr>
		<tr><th>数据完整率</th><th>{{ .Intergrity }}%</th></tr>
		<tr><th>报告输出时间</th><th>{{ .OutTime }}</th></tr>
	</table>
	<h1>窗口丢失详情</h1>
	<table border="1">
		<tr><th>序号</th><th>起始时间</th><th>结束时间</th><th>丢失数</th></tr>
		{{ range $i, $item := .Items }}
		<tr>
			<td>{{ $item.Key }}</td>
			<td>{{ $item.StartTime }}</td>
			<td>{{ $item.EndTime }}</td>
			<td>{{ $item.LostCount }}</td>
		</tr>
		{{ end }}
	</table>
</body>
</html>
`

// LostHtml 报告模板数据
func (s *Summary) LostHtml() coord.LostHtmlFormat {
	return coord.LostHtmlFormat{
		Name:       s.Name,
		OutTime:    time.Now().Format(reportLayout),
		Start:      s.Start.UTC().Format(reportLayout),
		End:        s.End.UTC().Format(reportLayout),
		Epoch:      int64(s.Epochs),
		AllEpoch:   s.AllEpoch,
		LostEpoch:  s.LostEpoch,
		Intergrity: s.Integrity,
		Duration:   method.Decimal(s.End.Sub(s.Start).Hours(), 2),
		Items:      s.Gaps,
	}
}

// ToLostReport 输出窗口丢失的 html 报告
func (s *Summary) ToLostReport(htmlPath string) error {
	t := template.Must(template.New("LostHtmlFormat").Parse(lostTmpl))
	file, err := os.Create(htmlPath)
	if err != nil {
		return err
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			log.Error(err)
		}
	}(file)
	return t.Execute(file, s.LostHtml())
}

// ToTextReport 文本格式的丢失信息
func (s *Summary) ToTextReport(txtPath string) {
	lines := []string{
		"************************************************************",
		fmt.Sprintf("文件路径:%s", s.Name),
		fmt.Sprintf("起始时间:%s", s.Start.UTC().Format(reportLayout)),
		fmt.Sprintf("结束时间:%s", s.End.UTC().Format(reportLayout)),
		fmt.Sprintf("窗口总数:%d", s.Epochs),
		fmt.Sprintf("窗口间隔:%.0fs", s.Interval.Seconds()),
		fmt.Sprintf("完整率:%.2f%%", s.Integrity),
		"************************************************************",
	}
	for _, g := range s.Gaps {
		lines = append(lines, fmt.Sprintf("%s ~ %s #WINDOW_LOST %.f", g.StartTime, g.EndTime, g.LostCount))
	}
	method.WriteFile(txtPath, lines)
}

// summaryTitle 表头与列的对应
var summaryTitle = []struct {
	Title string
	Col   string
}{
	{"文件名", "A"},
	{"观测数", "B"},
	{"星座", "C"},
	{"开始时间", "D"},
	{"结束时间", "E"},
	{"跟踪时长", "F"},
	{"窗口间隔", "G"},
	{"窗口数", "H"},
	{"完整率", "I"},
	{"REFSYS平均(ns)", "J"},
	{"平均仰角", "K"},
	{"纬度", "L"},
	{"经度", "M"},
	{"大地高", "N"},
	{"系统时延(ns)", "O"},
}

func (s *Summary) summaryValues() map[string]any {
	constellation := "-"
	if s.file != nil && len(s.file.Tracks) > 0 {
		constellation = s.file.Constellation().String()
	}
	delay := 0.0
	if s.file != nil {
		delay = s.file.Header.Delay.Value()
	}
	return map[string]any{
		"文件名":          s.Name,
		"观测数":          s.Tracks,
		"星座":           constellation,
		"开始时间":         s.Start.UTC().Format(reportLayout),
		"结束时间":         s.End.UTC().Format(reportLayout),
		"跟踪时长":         fmt.Sprintf("%.0fs", s.TrackLength.Seconds()),
		"窗口间隔":         fmt.Sprintf("%.0fs", s.Interval.Seconds()),
		"窗口数":          s.Epochs,
		"完整率":          fmt.Sprintf("%.2f%%", s.Integrity),
		"REFSYS平均(ns)": s.MeanREFSYS,
		"平均仰角":         s.MeanElevation,
		"纬度":           s.Antenna.B,
		"经度":           s.Antenna.L,
		"大地高":          s.Antenna.H,
		"系统时延(ns)":     delay,
	}
}

var trackTitle = []any{"SAT", "CL", "MJD", "STTIME", "TRKL", "ELV", "AZTH", "REFSV", "SRSV", "REFSYS", "SRSYS", "DSG", "IOE", "MDTR", "SMDT", "MDIO", "SMDI", "MSIO", "SMSI", "ISG", "FR", "HC", "FRC"}

// ToExcelFile 导出 Excel: 统计, 文件头, 观测
func (s *Summary) ToExcelFile(xlsxPath string) error {
	xlsx := excelize.NewFile()
	defer func() {
		if err := xlsx.Close(); err != nil {
			log.Error(err)
		}
	}()
	if err := s.toSummarySheet(xlsx, "Sheet1"); err != nil {
		return err
	}
	if s.file != nil {
		if err := toHeaderSheet(xlsx, "Header", s.file.Header); err != nil {
			return err
		}
		if err := toTrackSheet(xlsx, "Tracks", s.file.Tracks); err != nil {
			return err
		}
	}
	if err := xlsx.SaveAs(xlsxPath); err != nil {
		return err
	}
	log.Info("导出Excel: ", filepath.Base(xlsxPath))
	return nil
}

// toSummarySheet 第一行表头, 第二行数值
func (s *Summary) toSummarySheet(xlsx *excelize.File, sheetName string) error {
	if _, err := xlsx.NewSheet(sheetName); err != nil {
		return err
	}
	values := s.summaryValues()
	for _, item := range summaryTitle {
		if err := xlsx.SetCellValue(sheetName, item.Col+"1", item.Title); err != nil {
			return err
		}
		if err := xlsx.SetCellValue(sheetName, item.Col+"2", values[item.Title]); err != nil {
			return err
		}
	}
	return nil
}

func toHeaderSheet(xlsx *excelize.File, sheetName string, h Header) error {
	if _, err := xlsx.NewSheet(sheetName); err != nil {
		return err
	}
	ims := noIMS
	if h.IMS != nil {
		ims = h.IMS.String()
	}
	rows := [][]any{
		{"REV DATE", h.ReleaseDate.Format(dateLayout)},
		{"RCVR", h.Receiver.String()},
		{"CH", h.NbChannels},
		{"IMS", ims},
		{"LAB", h.Lab},
		{"X", h.APC.X},
		{"Y", h.APC.Y},
		{"Z", h.APC.Z},
		{"FRAME", h.APC.Frame},
		{"CAB DLY", h.Delay.Cable},
		{"REF DLY", h.Delay.Reference},
		{"SYS DLY", h.Delay.Value()},
		{"REF", h.Reference.String()},
	}
	for _, c := range h.Comments {
		rows = append(rows, []any{"COMMENTS", c})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xlsx.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// toTrackSheet 观测值按文件中的单位 (0.1ns 等) 输出
func toTrackSheet(xlsx *excelize.File, sheetName string, tracks []Track) error {
	if _, err := xlsx.NewSheet(sheetName); err != nil {
		return err
	}
	if err := xlsx.SetSheetRow(sheetName, "A1", &trackTitle); err != nil {
		return err
	}
	for i, t := range tracks {
		row := []any{
			t.SV.String(), t.Class.String(), MJD(t.Start), t.Start.UTC().Format("150405"),
			int(t.Duration.Seconds()),
			saturated(t.Elevation, degScale, 999), saturated(t.Azimuth, degScale, 9999),
			saturated(t.Data.REFSV, nanoScale, 99999999999), saturated(t.Data.SRSV, picoScale, 999999),
			saturated(t.Data.REFSYS, nanoScale, 99999999999), saturated(t.Data.SRSYS, picoScale, 999999),
			saturated(t.Data.DSG, nanoScale, 9999), t.Data.IOE,
			saturated(t.Data.MDTR, nanoScale, 9999), saturated(t.Data.SMDT, picoScale, 9999),
			saturated(t.Data.MDIO, nanoScale, 9999), saturated(t.Data.SMDI, picoScale, 9999),
		}
		if msio, smsi, isg, ok := t.Iono.Values(); ok {
			row = append(row, saturated(msio, nanoScale, 9999), saturated(smsi, picoScale, 9999), saturated(isg, nanoScale, 999))
		} else {
			row = append(row, "", "", "")
		}
		row = append(row, t.FR, t.HC, t.FRC)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := xlsx.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
