package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 可以從配置檔解析 "20s" 這類時長字串的時長類型
type Duration time.Duration

// UnmarshalYAML 實現 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("無效的時長: %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// Std 轉換為標準庫的 time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 服務器配置
type Config struct {
	// HTTP 服務配置
	Server struct {
		Port         int      `yaml:"port"`
		ReadTimeout  Duration `yaml:"read_timeout"`
		WriteTimeout Duration `yaml:"write_timeout"`
		IdleTimeout  Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	// 心跳配置
	Heartbeat struct {
		// 探測間隔：連接在一個完整間隔內未回應探測即判定死亡
		Interval Duration `yaml:"interval"`
	} `yaml:"heartbeat"`

	// 房間配置
	Room struct {
		// 創建請求未指定容量時使用的預設值
		DefaultCapacity int `yaml:"default_capacity"`
	} `yaml:"room"`

	// 日誌配置
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = Duration(15 * time.Second)
	cfg.Server.WriteTimeout = Duration(15 * time.Second)
	cfg.Server.IdleTimeout = Duration(60 * time.Second)
	cfg.Heartbeat.Interval = Duration(20 * time.Second) // 兩個間隔窗口內未回應即斷線
	cfg.Room.DefaultCapacity = 8
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig 載入配置
//
// path 為空時直接使用預設配置；
// 配置檔只需要覆蓋與預設值不同的欄位。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置檔失敗: %w", err)
	}

	if cfg.Room.DefaultCapacity < 1 {
		return nil, fmt.Errorf("預設房間容量必須大於 0: %d", cfg.Room.DefaultCapacity)
	}
	if cfg.Heartbeat.Interval <= 0 {
		return nil, fmt.Errorf("心跳間隔必須大於 0: %v", cfg.Heartbeat.Interval.Std())
	}

	return cfg, nil
}
