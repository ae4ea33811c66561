package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"NmapVulners/internal/cvedb"
	"NmapVulners/internal/report"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 NMAP_VULNERS_LOOKUP_WORKERS
const EnvPrefix = "NMAP_VULNERS"

// Loader 配置加载器：默认值 < 配置文件 < .env/环境变量 < 命令行参数
type Loader struct {
	viper   *viper.Viper
	envFile string
}

// NewLoader v 可以是已经绑定了命令行参数的实例，为 nil 时新建
func NewLoader(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{viper: v, envFile: ".env"}
}

// Viper 返回内部实例，用于绑定命令行参数
func (l *Loader) Viper() *viper.Viper {
	return l.viper
}

// Load 加载配置，configFile 为空时只使用默认值和环境变量
func (l *Loader) Load(configFile string) (*Config, error) {
	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}

	l.viper.SetEnvPrefix(EnvPrefix)
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()
	if err := l.viper.BindEnv("vulners.api_key", EnvPrefix+"_VULNERS_API_KEY", "VULNERS_API_KEY"); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	l.setDefaults()

	if configFile != "" {
		l.viper.SetConfigFile(configFile)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", configFile, err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile 读取 .env，已存在的环境变量优先
func (l *Loader) loadEnvFile() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("读取 %s 失败: %w", l.envFile, err)
	}
	return nil
}

// setDefaults 设置默认值
func (l *Loader) setDefaults() {
	l.viper.SetDefault("vulners.base_url", cvedb.DefaultBaseURL)
	l.viper.SetDefault("vulners.endpoint", cvedb.DefaultEndpoint)
	l.viper.SetDefault("vulners.api_key", "")
	l.viper.SetDefault("vulners.user_agent", "NmapVulners/1.0")
	l.viper.SetDefault("vulners.timeout", "30s")
	l.viper.SetDefault("vulners.retries", 0)
	l.viper.SetDefault("vulners.retry_backoff", "500ms")
	l.viper.SetDefault("vulners.rate_limit", 0)

	l.viper.SetDefault("lookup.workers", 4)
	l.viper.SetDefault("lookup.cache", true)

	l.viper.SetDefault("report.scratch_file", report.DefaultScratchFile)
	l.viper.SetDefault("report.summary_format", "text")

	l.viper.SetDefault("log.level", "info")
	l.viper.SetDefault("log.format", "text")
	l.viper.SetDefault("log.file", "")
	l.viper.SetDefault("log.max_size", 10)
	l.viper.SetDefault("log.max_backups", 3)
	l.viper.SetDefault("log.max_age", 28)

	l.viper.SetDefault("metrics.textfile", "")
}
