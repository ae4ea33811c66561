// Package metrics 统计一次运行的文档、查询和漏洞数量，可导出为 node_exporter textfile 格式。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 查询结果分类
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeCached  = "cached"
	DocumentOK     = "ok"
	DocumentFailed = "failed"
)

type Collector struct {
	registry  *prometheus.Registry
	documents *prometheus.CounterVec
	lookups   *prometheus.CounterVec
	findings  prometheus.Counter
	malformed prometheus.Counter
	skipped   *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nmap_vulners",
			Name:      "documents_total",
			Help:      "已处理的扫描报告数量",
		}, []string{"status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nmap_vulners",
			Name:      "lookups_total",
			Help:      "漏洞查询次数",
		}, []string{"outcome"}),
		findings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nmap_vulners",
			Name:      "findings_total",
			Help:      "写入报告的漏洞条目数",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nmap_vulners",
			Name:      "malformed_entries_total",
			Help:      "因字段缺失被跳过的响应条目数",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nmap_vulners",
			Name:      "skipped_ports_total",
			Help:      "未能生成查询的端口数",
		}, []string{"reason"}),
	}
	c.registry.MustRegister(c.documents, c.lookups, c.findings, c.malformed, c.skipped)
	return c
}

// 以下方法对 nil 接收者安全，未启用统计时直接忽略

func (c *Collector) Document(status string) {
	if c == nil {
		return
	}
	c.documents.WithLabelValues(status).Inc()
}

func (c *Collector) Lookup(outcome string) {
	if c == nil {
		return
	}
	c.lookups.WithLabelValues(outcome).Inc()
}

func (c *Collector) Findings(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.findings.Add(float64(n))
}

func (c *Collector) Malformed() {
	if c == nil {
		return
	}
	c.malformed.Inc()
}

func (c *Collector) Skipped(reason string) {
	if c == nil {
		return
	}
	c.skipped.WithLabelValues(reason).Inc()
}

// Gatherer 暴露内部 registry
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile 以 Prometheus 文本格式写入文件
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
