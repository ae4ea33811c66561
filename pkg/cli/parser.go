package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"NmapVulners/internal/config"
	"NmapVulners/internal/cvedb"
	"NmapVulners/internal/metrics"
	"NmapVulners/internal/pipeline"
	"NmapVulners/internal/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version 由构建参数覆盖
var Version = "1.0.0"

// 命令行参数与配置键的对应关系
var flagKeys = map[string]string{
	"base-url":       "vulners.base_url",
	"api-key":        "vulners.api_key",
	"timeout":        "vulners.timeout",
	"retries":        "vulners.retries",
	"rate-limit":     "vulners.rate_limit",
	"workers":        "lookup.workers",
	"scratch-file":   "report.scratch_file",
	"summary-format": "report.summary_format",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file",
	"metrics-file":   "metrics.textfile",
}

type Parser struct {
	configFile string
	noCache    bool
	viper      *viper.Viper
}

// NewRootCommand 构建命令行入口，每次调用都使用独立的配置实例
func NewRootCommand() *cobra.Command {
	p := &Parser{viper: viper.New()}

	root := &cobra.Command{
		Use:   "nmap-vulners [flags] <scan.xml>...",
		Short: "根据 nmap XML 扫描结果查询 Vulners 漏洞并生成 Markdown 报告",
		Long: "读取一个或多个 nmap XML 报告，对在线主机上未被过滤的端口服务查询 Vulners，\n" +
			"并为每个输入文件生成同名的 .md 漏洞报告。",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          p.run,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&p.configFile, "config", "c", "", "配置文件 (YAML)")
	flags.String("base-url", cvedb.DefaultBaseURL, "Vulners 服务地址")
	flags.String("api-key", "", "Vulners API key，也可使用 VULNERS_API_KEY")
	flags.Duration("timeout", 0, "单次请求超时 (默认 30s)")
	flags.Int("retries", 0, "传输失败时的重试次数")
	flags.Float64("rate-limit", 0, "每秒最多请求数，0 为不限速")
	flags.Int("workers", 0, "并发查询数 (默认 4)")
	flags.BoolVar(&p.noCache, "no-cache", false, "关闭本次运行内的查询缓存")
	flags.String("scratch-file", "", "检查点文件 (默认 .report.temp.md)")
	flags.String("summary-format", "", "运行摘要格式 (text, json)")
	flags.String("log-level", "", "日志级别 (debug, info, warn, error)")
	flags.String("log-format", "", "日志格式 (text, json)")
	flags.String("log-file", "", "日志文件，为空时只输出到 stderr")
	flags.String("metrics-file", "", "运行结束后写出的 Prometheus textfile")

	root.AddCommand(p.configCommand(), versionCommand())
	root.SetVersionTemplate("nmap-vulners {{.Version}}\n")
	return root
}

// Execute 运行命令并返回进程退出码
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, cvedb.ErrConnectivity):
		fmt.Fprintf(os.Stderr, "错误: 无法连接漏洞情报服务，请检查网络: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
	}
	return exitCode(err)
}

// exitCode 预检失败、配置错误和中断都返回 1；单个文件的失败只体现在摘要里
func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// loadConfig 绑定命令行参数后加载配置
func (p *Parser) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := p.viper.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("绑定参数 --%s 失败: %w", name, err)
			}
		}
	}
	if p.noCache {
		p.viper.Set("lookup.cache", false)
	}
	return config.NewLoader(p.viper).Load(p.configFile)
}

func (p *Parser) run(cmd *cobra.Command, args []string) error {
	cfg, err := p.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := utils.SetupLogging(cfg.Log); err != nil {
		return err
	}
	defer utils.CloseLogging()

	logger := utils.NewLogger("main")
	logger.Info("启动 nmap-vulners %s", Version)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	collector := metrics.NewCollector()
	client := cvedb.NewCVEAPIClient(cvedb.ClientConfig{
		BaseURL:      cfg.Vulners.BaseURL,
		Endpoint:     cfg.Vulners.Endpoint,
		APIKey:       cfg.Vulners.APIKey,
		UserAgent:    cfg.Vulners.UserAgent,
		Timeout:      cfg.Vulners.Timeout,
		Retries:      cfg.Vulners.Retries,
		RetryBackoff: cfg.Vulners.RetryBackoff,
		RateLimit:    cfg.Vulners.RateLimit,
	}, collector)

	if err := client.Preflight(ctx); err != nil {
		logger.Error("预检失败，未处理任何文件: %v", err)
		return err
	}

	var lookup cvedb.Lookuper = client
	if cfg.Lookup.Cache {
		cache, err := cvedb.NewLookupCache()
		if err != nil {
			logger.Warn("初始化查询缓存失败，不使用缓存: %v", err)
		} else {
			defer cache.Close()
			lookup = cvedb.NewCachedClient(client, cache, collector)
		}
	}

	auditor := pipeline.NewAuditor(lookup, pipeline.Options{
		Workers:     cfg.Lookup.Workers,
		ScratchFile: cfg.Report.ScratchFile,
	}, collector)
	summaries := auditor.Run(ctx, args)

	formatter := NewOutputFormatter(cfg.Report.SummaryFormat)
	if err := formatter.PrintSummary(cmd.OutOrStdout(), summaries); err != nil {
		logger.Error("输出运行摘要失败: %v", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("写入统计文件失败: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("运行被中断: %w", err)
	}
	return nil
}

// configCommand 输出合并后的有效配置
func (p *Parser) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "以 YAML 输出当前生效的配置 (API key 已遮盖)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := p.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nmap-vulners %s\n", Version)
		},
	}
}
