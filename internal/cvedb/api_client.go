package cvedb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NmapVulners/internal/metrics"
	"NmapVulners/internal/model"
	"NmapVulners/internal/report"
	"NmapVulners/internal/utils"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://vulners.com"
	DefaultEndpoint = "/api/v3/burp/software/"

	// lookupType 软件类查询的固定类别
	lookupType = "software"
	resultOK   = "OK"
)

// ClientConfig Vulners 客户端配置
type ClientConfig struct {
	BaseURL      string
	Endpoint     string
	APIKey       string
	UserAgent    string
	Timeout      time.Duration
	Retries      int           // 仅对传输层错误重试，0 表示不重试
	RetryBackoff time.Duration // 首次重试前的等待
	RateLimit    float64       // 每秒请求数，0 表示不限速
}

// CVEAPIClient Vulners 软件漏洞查询客户端
type CVEAPIClient struct {
	baseURL      string
	searchURL    string
	apiKey       string
	userAgent    string
	retries      int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	logger       *utils.Logger
	metrics      *metrics.Collector
	httpClient   *http.Client
}

// NewCVEAPIClient 创建新的查询客户端
func NewCVEAPIClient(cfg ClientConfig, collector *metrics.Collector) *CVEAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "NmapVulners/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	client := &CVEAPIClient{
		baseURL:      baseURL,
		searchURL:    baseURL + "/" + strings.TrimLeft(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		userAgent:    cfg.UserAgent,
		retries:      max(0, cfg.Retries),
		retryBackoff: cfg.RetryBackoff,
		logger:       utils.NewLogger("cve-api-client"),
		metrics:      collector,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
	if cfg.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return client
}

// Vulners 响应结构
type searchResponse struct {
	Result string `json:"result"`
	Data   struct {
		Search []json.RawMessage `json:"search"`
	} `json:"data"`
}

type searchEntry struct {
	Source *struct {
		CVSS *struct {
			Score *json.Number `json:"score"`
		} `json:"cvss"`
		Href        *string `json:"href"`
		Description *string `json:"description"`
	} `json:"_source"`
}

// Preflight 访问服务根地址确认网络可达，不读取响应内容
func (client *CVEAPIClient) Preflight(ctx context.Context) error {
	target := client.baseURL + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	req.Header.Set("User-Agent", client.userAgent)

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w (%s): %v", ErrConnectivity, target, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	client.logger.Debug("预检完成: %s 返回 %s", target, resp.Status)
	return nil
}

// Lookup 查询一个服务的漏洞。未命中时返回空结果且不报错，
// 只有传输层失败才返回 *TransportError
func (client *CVEAPIClient) Lookup(ctx context.Context, query model.ServiceQuery) ([]model.Finding, error) {
	var findings []model.Finding
	err := utils.Retry(ctx, client.retries, client.retryBackoff, IsTransportError, func() error {
		var err error
		findings, err = client.lookupOnce(ctx, query)
		if err != nil && client.retries > 0 {
			client.logger.Debug("查询 %s 失败，准备重试: %v", query, err)
		}
		return err
	})
	if err != nil {
		client.metrics.Lookup(metrics.OutcomeError)
		return nil, err
	}

	if len(findings) == 0 {
		client.metrics.Lookup(metrics.OutcomeMiss)
	} else {
		client.metrics.Lookup(metrics.OutcomeHit)
	}
	return findings, nil
}

func (client *CVEAPIClient) lookupOnce(ctx context.Context, query model.ServiceQuery) ([]model.Finding, error) {
	params := url.Values{}
	params.Set("software", query.Product)
	params.Set("version", query.Version)
	params.Set("type", lookupType)
	reqURL := client.searchURL + "?" + params.Encode()

	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{URL: reqURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", client.userAgent)
	req.Header.Set("Accept", "application/json")
	if client.apiKey != "" {
		req.Header.Set("X-Api-Key", client.apiKey)
	}

	client.logger.Info("使用 URL %s", reqURL)

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		client.logger.Debug("%s 返回 %s，视为无结果", query, resp.Status)
		return nil, nil
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		client.logger.Warn("解析 %s 的响应失败，视为无结果: %v", query, err)
		return nil, nil
	}
	if payload.Result != resultOK {
		client.logger.Debug("%s 无匹配 (result=%q)", query, payload.Result)
		return nil, nil
	}

	client.logger.Debug("JSON 响应 %s", body)
	return client.convertEntries(query, payload.Data.Search), nil
}

// convertEntries 按响应顺序转换条目，缺字段的条目跳过，序号保持数组位置
func (client *CVEAPIClient) convertEntries(query model.ServiceQuery, entries []json.RawMessage) []model.Finding {
	findings := make([]model.Finding, 0, len(entries))
	for i, raw := range entries {
		finding, err := convertEntry(i+1, raw)
		if err != nil {
			client.metrics.Malformed()
			client.logger.Warn("%s: %v，已跳过", query, err)
			continue
		}
		findings = append(findings, finding)
	}
	return findings
}

func convertEntry(index int, raw json.RawMessage) (model.Finding, error) {
	var entry searchEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.Finding{}, &MalformedResponseError{Index: index, Err: err}
	}

	source := entry.Source
	switch {
	case source == nil:
		return model.Finding{}, &MalformedResponseError{Index: index, Field: "_source"}
	case source.CVSS == nil || source.CVSS.Score == nil:
		return model.Finding{}, &MalformedResponseError{Index: index, Field: "_source.cvss.score"}
	case source.Href == nil:
		return model.Finding{}, &MalformedResponseError{Index: index, Field: "_source.href"}
	case source.Description == nil:
		return model.Finding{}, &MalformedResponseError{Index: index, Field: "_source.description"}
	}

	score, err := source.CVSS.Score.Float64()
	if err != nil {
		return model.Finding{}, &MalformedResponseError{Index: index, Field: "_source.cvss.score", Err: err}
	}

	return model.Finding{
		Index:       index,
		Score:       score,
		ScoreText:   scoreText(*source.CVSS.Score, score),
		Link:        *source.Href,
		Description: *source.Description,
	}, nil
}

// scoreText 整数分数按原文输出 (5 -> "5")，小数按最短表示 (7.50 -> "7.5")
func scoreText(raw json.Number, score float64) string {
	if _, err := strconv.ParseInt(raw.String(), 10, 64); err == nil {
		return raw.String()
	}
	return report.FormatScore(score)
}
