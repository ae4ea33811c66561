package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"NmapVulners/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config 运行配置
type Config struct {
	Vulners VulnersConfig   `mapstructure:"vulners" yaml:"vulners"`
	Lookup  LookupConfig    `mapstructure:"lookup" yaml:"lookup"`
	Report  ReportConfig    `mapstructure:"report" yaml:"report"`
	Log     utils.LogConfig `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// VulnersConfig 漏洞情报服务
type VulnersConfig struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries      int           `mapstructure:"retries" yaml:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	RateLimit    float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// LookupConfig 查询并发与缓存
type LookupConfig struct {
	Workers int  `mapstructure:"workers" yaml:"workers"`
	Cache   bool `mapstructure:"cache" yaml:"cache"`
}

// ReportConfig 报告输出
type ReportConfig struct {
	ScratchFile   string `mapstructure:"scratch_file" yaml:"scratch_file"`
	SummaryFormat string `mapstructure:"summary_format" yaml:"summary_format"` // text, json
}

// MetricsConfig 统计导出，textfile 为空时不导出
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Validate 校验配置
func (c *Config) Validate() error {
	u, err := url.Parse(c.Vulners.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("vulners.base_url 无效: %q", c.Vulners.BaseURL)
	}
	if c.Vulners.Timeout <= 0 {
		return fmt.Errorf("vulners.timeout 必须大于 0")
	}
	if c.Vulners.Retries < 0 {
		return fmt.Errorf("vulners.retries 不能为负数")
	}
	if c.Vulners.RateLimit < 0 {
		return fmt.Errorf("vulners.rate_limit 不能为负数")
	}
	if c.Lookup.Workers < 1 {
		return fmt.Errorf("lookup.workers 至少为 1")
	}
	switch strings.ToLower(c.Report.SummaryFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("report.summary_format 只支持 text 或 json: %q", c.Report.SummaryFormat)
	}
	return nil
}

// Marshal 输出 YAML，API key 会被遮盖
func Marshal(c *Config) ([]byte, error) {
	masked := *c
	if masked.Vulners.APIKey != "" {
		masked.Vulners.APIKey = "******"
	}
	return yaml.Marshal(&masked)
}
