package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir           string `json:"data_dir"`           // 数据文件目录
	FlightsFile       string `json:"flights_file"`       // 航班数据文件(.csv/.xlsx)
	FlightsSheet      string `json:"flights_sheet"`      // xlsx航班数据的工作表名
	AirportsFile      string `json:"airports_file"`      // 机场代码参考表(.csv)
	AirportsDelimiter string `json:"airports_delimiter"` // 参考表分隔符
	Watch             bool   `json:"watch"`              // 数据文件变化时自动重新加载

	AppEnv     string `json:"app_env"`
	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"` // 例如 "10 * 1024 * 1024"

	HTTP struct {
		Addr string `json:"addr"` // 监听地址
	} `json:"http"`

	Report struct {
		Spec      string   `json:"spec"`       // cron表达式，为空则不导出
		Origins   []string `json:"origins"`    // 需要导出的出发地
		OutputDir string   `json:"output_dir"` // 报表输出目录
	} `json:"report"`

	Email struct {
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server     string   `json:"server"`     // SMTP服务器地址
		Username   string   `json:"username"`   // 发件邮箱
		Password   string   `json:"password"`   // 发件密码/授权码
		Recipients []string `json:"recipients"` // 收件人
	} `json:"send_email"`

	DingTalk struct {
		Webhook string `json:"webhook"` // 机器人webhook地址
		Secret  string `json:"secret"`  // 加签密钥
	} `json:"dingtalk"`
}

// DataConfig 数据列映射配置
type DataConfig struct {
	FlightData  map[string]string `json:"flightData"`  // 逻辑字段 -> 航班表列名
	AirportData map[string]string `json:"airportData"` // 逻辑字段 -> 参考表列名
	HeaderRow   int               `json:"header_row"`  // xlsx标题行(从0开始)
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// 默认列名，与nycflights13/BTS导出的小写列名一致
var defaultFlightData = map[string]string{
	"origin":             "origin",
	"dest":               "dest",
	"origin_city":        "origin_city",
	"dest_city":          "dest_city",
	"carrier":            "carrier",
	"sched_dep_time":     "sched_dep_time",
	"dep_time":           "dep_time",
	"dep_delay":          "dep_delay",
	"taxi_out":           "taxi_out",
	"wheels_off":         "wheels_off",
	"wheels_on":          "wheels_on",
	"taxi_in":            "taxi_in",
	"sched_arr_time":     "sched_arr_time",
	"arr_time":           "arr_time",
	"arr_delay":          "arr_delay",
	"sched_elapsed_time": "sched_elapsed_time",
	"elapsed_time":       "elapsed_time",
	"air_time":           "air_time",
	"distance":           "distance",
	"cancelled":          "cancelled",
	"diverted":           "diverted",
}

var defaultAirportData = map[string]string{
	"code":      "Airport Code",
	"latitude":  "Latitude",
	"longitude": "Longitude",
}

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	dcfg.applyDefaults()

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.FlightsFile == "" {
		c.FlightsFile = "flights.csv"
	}
	if c.AirportsFile == "" {
		c.AirportsFile = "airports_codes.csv"
	}
	if c.AirportsDelimiter == "" {
		c.AirportsDelimiter = ";"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = filepath.Join(c.DataDir, "reports")
	}
	if c.Email.CheckInterval == 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
}

// 环境变量覆盖配置文件中的值
func (c *Config) applyEnv() {
	if v := os.Getenv("FDX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FDX_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("FDX_APP_ENV"); v != "" {
		c.AppEnv = v
	}
	if v := os.Getenv("FDX_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch = b
		}
	}
	if v := os.Getenv("FDX_EMAIL_PASSWORD"); v != "" {
		c.Email.Password = v
	}
	if v := os.Getenv("FDX_SMTP_PASSWORD"); v != "" {
		c.SendEmail.Password = v
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.FlightData == nil {
		dc.FlightData = make(map[string]string)
	}
	for k, v := range defaultFlightData {
		if _, ok := dc.FlightData[k]; !ok {
			dc.FlightData[k] = v
		}
	}

	if dc.AirportData == nil {
		dc.AirportData = make(map[string]string)
	}
	for k, v := range defaultAirportData {
		if _, ok := dc.AirportData[k]; !ok {
			dc.AirportData[k] = v
		}
	}
}

// LoadEnv 加载.env文件中的环境变量，文件不存在不算错误
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	var existing []string
	for _, f := range filenames {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("加载环境变量文件失败: %w", err)
	}
	return nil
}

// DefaultDataConfig 返回只包含默认列映射的DataConfig
func DefaultDataConfig() *DataConfig {
	dc := &DataConfig{}
	dc.applyDefaults()
	return dc
}

// FlightsPath 航班数据文件的完整路径
func (c *Config) FlightsPath() string {
	return filepath.Join(c.DataDir, c.FlightsFile)
}

// AirportsPath 机场代码参考表的完整路径
func (c *Config) AirportsPath() string {
	return filepath.Join(c.DataDir, c.AirportsFile)
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) GetFlightData(colName string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.FlightData[colName]
}

func (dc *DataConfig) SetFlightData(colName, value string) {
	mu.Lock()
	defer mu.Unlock()
	dc.FlightData[colName] = value
}

func (dc *DataConfig) GetAirportData(colName string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.AirportData[colName]
}
