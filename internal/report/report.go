package report

import (
	"fmt"
	"strconv"
	"strings"

	"NmapVulners/internal/model"
)

// Header 每份报告的固定标题
const Header = "# Scan"

// 单个漏洞块：产品、版本、主机、端口、分数、序号、链接(两次)、描述
const blockTemplate = "\n\n## %s v%s on %s:%d with score of %s #%d \n\nMore information here: [%s](%s)\n\n%s"

// Entry 报告中的一条漏洞
type Entry struct {
	Query   model.ServiceQuery
	Finding model.Finding
}

// Report 一个输入文件对应的报告，按发现顺序保存条目
type Report struct {
	entries []Entry
}

func New() *Report {
	return &Report{}
}

// Add 追加一条漏洞
func (r *Report) Add(query model.ServiceQuery, finding model.Finding) {
	r.entries = append(r.entries, Entry{Query: query, Finding: finding})
}

func (r *Report) Len() int {
	return len(r.entries)
}

// Entries 返回条目副本
func (r *Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Render 生成 markdown 文本，对同一报告多次调用结果一致
func (r *Report) Render() string {
	var builder strings.Builder
	builder.WriteString(Header)
	for _, e := range r.entries {
		fmt.Fprintf(&builder, blockTemplate,
			e.Query.Product,
			e.Query.Version,
			e.Query.Host,
			e.Query.Port,
			scoreOf(e.Finding),
			e.Finding.Index,
			e.Finding.Link,
			e.Finding.Link,
			e.Finding.Description,
		)
	}
	return builder.String()
}

func scoreOf(f model.Finding) string {
	if f.ScoreText != "" {
		return f.ScoreText
	}
	return FormatScore(f.Score)
}

// FormatScore 最短表示，整数值保留 ".0"（7.5 -> "7.5"，5 -> "5.0"）
func FormatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
