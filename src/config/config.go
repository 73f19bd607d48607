package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix 环境变量前缀，AIRDASH_SERVER__ADDR -> server.addr
const EnvPrefix = "AIRDASH_"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir  string `json:"data_dir"` // 数据文件目录
	Files    Files  `json:"files"`
	Encoding string `json:"encoding"` // CSV 文件编码，默认 utf-8

	Server struct {
		Addr              string   `json:"addr"`                // 监听地址
		SessionSecret     string   `json:"session_secret"`      // cookie 签名密钥
		ReadHeaderTimeout Duration `json:"read_header_timeout"` // 读请求头超时
	} `json:"server"`

	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`
	Verbose    bool   `json:"verbose"`

	Cache bool `json:"cache"` // 是否缓存已加载的数据
	Watch bool `json:"watch"` // 是否监控数据目录

	Snapshot struct {
		Schedule string `json:"schedule"` // cron 表达式，空则不启用
		Dir      string `json:"dir"`
	} `json:"snapshot"`

	SendEmail struct {
		Server   string   `json:"server"`   // 邮件服务器地址
		Username string   `json:"username"` // 邮箱用户名
		Password string   `json:"password"` // 邮箱密码
		Subject  string   `json:"subject"`  // 邮件主题
		To       []string `json:"to"`       // 收件人
	} `json:"send_email"`

	Footer string `json:"footer"`
}

// Files 数据目录下的固定文件名
type Files struct {
	Segmentation string `json:"segmentation"`
	Components   string `json:"components"`
	Performance  string `json:"performance"`
	Analysis     string `json:"analysis"`
}

// Cluster 聚类编号到名称、颜色的映射
type Cluster struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DataConfig 静态标签/颜色查找表
type DataConfig struct {
	Clusters        []Cluster `json:"clusters"`
	FallbackColor   string    `json:"fallback_color"`
	StopLabels      []string  `json:"stop_labels"`      // 下标即经停次数
	StopColors      []string  `json:"stop_colors"`      // 平均票价柱状图配色
	StopCountColors []string  `json:"stop_count_colors"` // 航班数柱状图配色(Set2)
	DepartureLabels []string  `json:"departure_labels"` // 下标即 departure_time 编码
	DepartureColors []string  `json:"departure_colors"`
	ClassLabels     []string  `json:"class_labels"` // 下标即 class 编码
	ClassColors     []string  `json:"class_colors"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig 加载配置，只执行一次
// 优先级(低到高): 默认值 < 配置文件 < 环境变量 < 命令行参数
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string, flags *pflag.FlagSet) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = loadConfigs(jsonFolder, jsonFile, dataJsonFile, flags)
	})
	return instance, dataConfigInstance, loadErr
}

// Reset 清除已加载的配置，测试使用
func Reset() {
	once = sync.Once{}
	instance, dataConfigInstance, loadErr = nil, nil, nil
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string, flags *pflag.FlagSet) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	cfg, err := parseConfig(configFile, flags)
	if err != nil {
		return nil, nil, err
	}

	dcfg, err := parseDataConfig(dataConfigFile)
	if err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func parseConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("加载默认配置失败: %w", err)
	}

	// 配置文件不存在时只用默认值
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), kjson.Parser()); err != nil {
			return nil, fmt.Errorf("解析Config失败 %s: %w", configFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "addr" {
				key = "server.addr"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("读取命令行参数失败: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("解析Config失败: %w", err)
	}
	return &cfg, nil
}

func parseDataConfig(dataConfigFile string) (*DataConfig, error) {
	dcfg := DefaultDataConfig()

	data, err := os.ReadFile(dataConfigFile)
	if os.IsNotExist(err) {
		return dcfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", dataConfigFile, err)
	}

	if err := json.Unmarshal(data, dcfg); err != nil {
		return nil, fmt.Errorf("解析DataConfig失败: %w", err)
	}
	return dcfg, nil
}

func defaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"data_dir":                   ".",
		"files.segmentation":         "cleaned_segmentation_data.csv",
		"files.components":           "pca_components.npy",
		"files.performance":          "airline_performance_table.csv",
		"files.analysis":             "airline_analysis_dataset.csv",
		"encoding":                   "utf-8",
		"server.addr":                ":8501",
		"server.session_secret":      "airdash-session",
		"server.read_header_timeout": "10s",
		"log_name":                   "app.log",
		"log_max_size":               "10 * 1024 * 1024",
		"cache":                      true,
		"watch":                      true,
		"snapshot.schedule":          "",
		"snapshot.dir":               "snapshots",
		"footer":                     "🛠 Built with Go · ✨ Powered by clusters and curiosity",
	}
}

// DefaultDataConfig 返回内置的标签表
func DefaultDataConfig() *DataConfig {
	return &DataConfig{
		Clusters: []Cluster{
			{ID: 0, Name: "🧳 Budget Nomads", Color: "#1f77b4"},
			{ID: 1, Name: "👑 Elite Gliders", Color: "#ff7f0e"},
			{ID: 2, Name: "🌍 Balanced Explorers", Color: "#2ca02c"},
			{ID: 3, Name: "⚡️ Early Hustlers", Color: "#d62728"},
		},
		FallbackColor:   "#7f7f7f",
		StopLabels:      []string{"Non-stop", "1 Stop", "2 Stops"},
		StopColors:      []string{"#1f77b4", "#ff7f0e", "#2ca02c"},
		StopCountColors: []string{"#66c2a5", "#fc8d62", "#8da0cb", "#e78ac3", "#a6d854", "#ffd92f", "#e5c494", "#b3b3b3"},
		DepartureLabels: []string{"Early Morning", "Morning", "Afternoon", "Evening", "Night", "Late Night"},
		DepartureColors: []string{"#636efa", "#ef553b", "#00cc96", "#ab63fa", "#ffa15a", "#19d3f3"},
		ClassLabels:     []string{"Economy", "Business"},
		ClassColors:     []string{"#636efa", "#ef553b"},
	}
}

// SegmentationPath 等路径拼接
func (c *Config) SegmentationPath() string { return filepath.Join(c.DataDir, c.Files.Segmentation) }
func (c *Config) ComponentsPath() string   { return filepath.Join(c.DataDir, c.Files.Components) }
func (c *Config) PerformancePath() string  { return filepath.Join(c.DataDir, c.Files.Performance) }
func (c *Config) AnalysisPath() string     { return filepath.Join(c.DataDir, c.Files.Analysis) }

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
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText koanf 解码时使用
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
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

// ClusterName 返回聚类名称，未知编号返回 "Cluster N"
func (dc *DataConfig) ClusterName(id int) string {
	mu.RLock()
	defer mu.RUnlock()
	for _, c := range dc.Clusters {
		if c.ID == id {
			return c.Name
		}
	}
	return fmt.Sprintf("Cluster %d", id)
}

// ColorFor 按聚类名称取颜色
func (dc *DataConfig) ColorFor(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	for _, c := range dc.Clusters {
		if c.Name == name {
			return c.Color
		}
	}
	return dc.FallbackColor
}

// SetCluster 覆盖或新增一个聚类映射
func (dc *DataConfig) SetCluster(c Cluster) {
	mu.Lock()
	defer mu.Unlock()
	for i := range dc.Clusters {
		if dc.Clusters[i].ID == c.ID {
			dc.Clusters[i] = c
			return
		}
	}
	dc.Clusters = append(dc.Clusters, c)
}

// Label 按编码取标签，越界返回空字符串
func Label(labels []string, code int) string {
	if code < 0 || code >= len(labels) {
		return ""
	}
	return labels[code]
}
