// reader.go
package file

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"FlightDelayExplorer/src/config"
	"FlightDelayExplorer/src/processor"
	"FlightDelayExplorer/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// LoadFlights 按扩展名读取航班数据文件(.csv/.xlsx)并转换为航班记录
// skipped为出发地或目的地为空而跳过的行数
func LoadFlights(filePath, sheetName string, dcfg *config.DataConfig) (flights []processor.FlightRecord, skipped int, err error) {
	var df dataframe.DataFrame

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx":
		df, err = ReadXLSX(filePath, sheetName, dcfg.HeaderRow)
	case ".csv", ".txt":
		df, err = ReadCSV(filePath, ',')
	default:
		return nil, 0, fmt.Errorf("不支持的航班数据文件类型: %s", filePath)
	}
	if err != nil {
		return nil, 0, err
	}

	return FlightsFromDataFrame(df, dcfg)
}

// ParseFlights 解析内存中的航班数据(如邮件附件)，文件类型由filename的扩展名决定
func ParseFlights(filename string, data []byte, sheetName string, dcfg *config.DataConfig) ([]processor.FlightRecord, int, error) {
	var (
		df  dataframe.DataFrame
		err error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		df, err = ReadXLSXBytes(data, sheetName, dcfg.HeaderRow)
	case ".csv", ".txt":
		df, err = readCSV(bytes.NewReader(data), ',')
	default:
		return nil, 0, fmt.Errorf("不支持的航班数据文件类型: %s", filename)
	}
	if err != nil {
		return nil, 0, err
	}

	return FlightsFromDataFrame(df, dcfg)
}

// LoadAirportCodes 读取机场代码参考表
// 字段数与表头不一致的行直接跳过，返回值skipped为跳过的行数
func LoadAirportCodes(filePath string, delimiter rune, dcfg *config.DataConfig) (codes []processor.AirportCode, skipped int, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("打开机场代码文件失败: %w", err)
	}
	defer f.Close()

	df, badLines, err := readTolerantCSV(f, delimiter)
	if err != nil {
		return nil, 0, fmt.Errorf("读取机场代码文件 %s 失败: %w", filePath, err)
	}

	codes, badRows, err := AirportsFromDataFrame(df, dcfg)
	if err != nil {
		return nil, 0, err
	}
	return codes, badLines + badRows, nil
}

// ReadCSV 使用gota读取CSV，所有列按字符串读取，数值在转换时再解析
func ReadCSV(filePath string, delimiter rune) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.New(), fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	df, err := readCSV(f, delimiter)
	if err != nil {
		return df, fmt.Errorf("解析CSV文件 %s 失败: %w", filePath, err)
	}
	return df, nil
}

func readCSV(r io.Reader, delimiter rune) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(delimiter),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return dataframe.New(), df.Err
	}
	return df, nil
}

// readTolerantCSV 逐行读取，丢弃字段数与表头不一致的行
func readTolerantCSV(r io.Reader, delimiter rune) (dataframe.DataFrame, int, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		records [][]string
		skipped int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(records) > 0 && len(record) != len(records[0]) {
			skipped++
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return dataframe.New(), skipped, fmt.Errorf("文件为空")
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	return df, skipped, df.Err
}

func ReadXLSX(filePath, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.New(), fmt.Errorf("xlsx open file false: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName, headerRow)
}

// ReadXLSXBytes 从内存中的xlsx数据(如邮件附件)读取DataFrame
func ReadXLSXBytes(data []byte, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.New(), fmt.Errorf("xlsx open binary false: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName, headerRow)
}

func sheetToDataFrame(xlFile *xlsx.File, sheetName string, headerRow int) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.New(), fmt.Errorf("excel文件中没有工作表")
	}

	// 未指定工作表名时取第一个工作表
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.New(), fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}

	return convertSheetToDataFrame(sheet, headerRow)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, headerRow int) (dataframe.DataFrame, error) {
	if len(sheet.Rows) <= headerRow {
		return dataframe.New(), fmt.Errorf("工作表 %s 没有标题行", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}

	// 准备数据列
	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-headerRow-1)
	}

	// 填充数据(标题行之后)，短行补空字符串
	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil {
			continue
		}
		for i := range headers {
			value := ""
			if i < len(row.Cells) && row.Cells[i] != nil {
				value = row.Cells[i].Value
			}
			columns[i] = append(columns[i], value)
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	return df, df.Err
}

// FlightsFromDataFrame 按列映射把DataFrame转换为航班记录
// origin/dest列必须存在，其他列缺失时对应字段全部视为缺失
// 出发地或目的地为空的行跳过并计数
func FlightsFromDataFrame(df dataframe.DataFrame, dcfg *config.DataConfig) ([]processor.FlightRecord, int, error) {
	text := func(field string, required bool) ([]string, error) {
		col := dcfg.GetFlightData(field)
		if col == "" || !utils.HasColumn(df, col) {
			if required {
				return nil, fmt.Errorf("航班数据缺少必需列 %s(%s)", col, field)
			}
			return nil, nil
		}
		return df.Col(col).Records(), nil
	}

	origins, err := text("origin", true)
	if err != nil {
		return nil, 0, err
	}
	dests, err := text("dest", true)
	if err != nil {
		return nil, 0, err
	}
	originCities, _ := text("origin_city", false)
	destCities, _ := text("dest_city", false)
	carriers, _ := text("carrier", false)
	cancelled, _ := text("cancelled", false)
	diverted, _ := text("diverted", false)

	metrics := make([][]string, processor.NumMetrics)
	for _, m := range processor.Metrics() {
		metrics[m], _ = text(m.String(), false)
	}

	// gota把NA类取值读成"NaN"，文本字段按空值处理
	at := func(values []string, i int) string {
		if values == nil {
			return ""
		}
		v := strings.TrimSpace(values[i])
		if v == "NaN" {
			return ""
		}
		return v
	}

	records := make([]processor.FlightRecord, 0, df.Nrow())
	skipped := 0
	for i := 0; i < df.Nrow(); i++ {
		origin, dest := at(origins, i), at(dests, i)
		if origin == "" || dest == "" {
			skipped++
			continue
		}

		records = append(records, processor.FlightRecord{Origin: origin, Dest: dest})
		r := &records[len(records)-1]
		r.OriginCity = at(originCities, i)
		r.DestCity = at(destCities, i)
		r.Carrier = at(carriers, i)
		r.Cancelled = utils.ParseFlag(at(cancelled, i))
		r.Diverted = utils.ParseFlag(at(diverted, i))

		for _, m := range processor.Metrics() {
			if metrics[m] != nil {
				r.SetValue(m, utils.ParseOptionalFloat(metrics[m][i]))
			}
		}
	}
	return records, skipped, nil
}

// AirportsFromDataFrame 按列映射转换机场代码参考表
// 坐标无法解析的行跳过并计数
func AirportsFromDataFrame(df dataframe.DataFrame, dcfg *config.DataConfig) ([]processor.AirportCode, int, error) {
	cols := make(map[string][]string, 3)
	for _, field := range []string{"code", "latitude", "longitude"} {
		col := dcfg.GetAirportData(field)
		if !utils.HasColumn(df, col) {
			return nil, 0, fmt.Errorf("机场代码表缺少必需列 %s(%s)", col, field)
		}
		cols[field] = df.Col(col).Records()
	}

	codes := make([]processor.AirportCode, 0, df.Nrow())
	skipped := 0
	for i := 0; i < df.Nrow(); i++ {
		code := strings.TrimSpace(cols["code"][i])
		lat := utils.ParseOptionalFloat(cols["latitude"][i])
		lon := utils.ParseOptionalFloat(cols["longitude"][i])
		if code == "" || lat == nil || lon == nil {
			skipped++
			continue
		}
		codes = append(codes, processor.AirportCode{
			Code:      code,
			Latitude:  *lat,
			Longitude: *lon,
		})
	}
	return codes, skipped, nil
}
