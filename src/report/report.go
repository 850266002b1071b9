package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"FlightDelayExplorer/src/datasource"
	"FlightDelayExplorer/src/processor"
	"FlightDelayExplorer/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

const (
	lookupsSheet = "lookups"
	defaultSheet = "Sheet1" // excelize.NewFile自带的工作表
	maxSheetName = 31
)

// Exporter 把航线汇总导出为xlsx报表
type Exporter struct {
	Now func() time.Time
}

func NewExporter() *Exporter {
	return &Exporter{Now: time.Now}
}

// Export 每个出发地一个工作表，外加一个lookups工作表
// origins为空时导出全部出发地，返回报表路径
func (e *Exporter) Export(ds *datasource.Dataset, origins []string, dir string) (string, error) {
	if ds == nil {
		return "", fmt.Errorf("数据集为空")
	}
	if len(origins) == 0 {
		origins = processor.DistinctOriginCodes(ds.Flights)
	}

	f := excelize.NewFile()
	defer f.Close()

	names := newSheetNames()
	sheets := make([]string, len(origins))
	for i, origin := range origins {
		sheets[i] = names.next(origin)
	}

	// 默认工作表改名为第一个工作表
	first := lookupsSheet
	if len(sheets) > 0 {
		first = sheets[0]
	}
	if err := f.SetSheetName(defaultSheet, first); err != nil {
		return "", err
	}

	for i, origin := range origins {
		rows := processor.SummarizeRoutes(ds.Flights, origin)
		if err := utils.WriteSheet(f, sheets[i], processor.SummariesToDataFrame(rows)); err != nil {
			return "", fmt.Errorf("写入出发地 %s 失败: %w", origin, err)
		}
	}
	if err := utils.WriteSheet(f, lookupsSheet, lookupsFrame(ds.Flights)); err != nil {
		return "", fmt.Errorf("写入lookups失败: %w", err)
	}

	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("route_summary_%s.xlsx", e.Now().Format("20060102150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("保存报表失败: %w", err)
	}
	return path, nil
}

// lookupsFrame 出发地和目的地的下拉选项，kind列区分两类
func lookupsFrame(flights []processor.FlightRecord) dataframe.DataFrame {
	var kinds, values []string
	for _, o := range processor.DistinctOrigins(flights) {
		kinds = append(kinds, "origin")
		values = append(values, o)
	}
	for _, d := range processor.DistinctDestinations(flights) {
		kinds = append(kinds, "destination")
		values = append(values, d)
	}
	return dataframe.New(
		series.New(kinds, series.String, "kind"),
		series.New(values, series.String, "value"),
	)
}

// sheetNames 分配工作表名
// excel工作表名不区分大小写，最长31个字符且不能含有 []:*?/\
// 重名时追加 _2、_3 ...
type sheetNames struct {
	used map[string]bool
}

func newSheetNames() *sheetNames {
	return &sheetNames{used: map[string]bool{
		strings.ToLower(lookupsSheet): true,
		strings.ToLower(defaultSheet): true,
	}}
}

func (n *sheetNames) next(origin string) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, origin)
	if base == "" {
		base = "origin"
	}

	name := truncateRunes(base, maxSheetName)
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}

// Digest 生成文字摘要：每个出发地的航线数和平均起飞延误最大的目的地
func Digest(ds *datasource.Dataset, origins []string) string {
	var b strings.Builder
	b.WriteString("### 航线延误汇总\n\n")
	if ds == nil {
		b.WriteString("数据集尚未加载\n")
		return b.String()
	}
	if len(origins) == 0 {
		origins = processor.DistinctOriginCodes(ds.Flights)
	}

	fmt.Fprintf(&b, "数据加载时间: %s\n\n", ds.LoadedAt.Format("2006-01-02 15:04:05"))
	for _, origin := range origins {
		rows := processor.SummarizeRoutes(ds.Flights, origin)
		if len(rows) == 0 {
			fmt.Fprintf(&b, "- **%s**: 无航班\n", origin)
			continue
		}

		worst := worstDepDelay(rows)
		if worst == nil {
			fmt.Fprintf(&b, "- **%s**: %d条航线, 无起飞延误数据\n", origin, len(rows))
			continue
		}
		fmt.Fprintf(&b, "- **%s**: %d条航线, 平均起飞延误最大 %s (%.1f 分钟)\n",
			origin, len(rows), worst.Dest, *worst.MeanDepDelay)
	}
	return b.String()
}

// worstDepDelay 平均起飞延误最大的航线，全部缺失时返回nil
func worstDepDelay(rows []processor.RouteSummary) *processor.RouteSummary {
	var worst *processor.RouteSummary
	for i := range rows {
		if rows[i].MeanDepDelay == nil {
			continue
		}
		if worst == nil || *rows[i].MeanDepDelay > *worst.MeanDepDelay {
			worst = &rows[i]
		}
	}
	return worst
}
