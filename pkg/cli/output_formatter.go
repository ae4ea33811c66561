package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"NmapVulners/internal/pipeline"
	"NmapVulners/internal/utils"
)

// RunSummary 一次运行的汇总
type RunSummary struct {
	RunID     string                     `json:"run_id"`
	Documents []pipeline.DocumentSummary `json:"documents"`
	Totals    Totals                     `json:"totals"`
}

// Totals 所有文档的合计
type Totals struct {
	Documents int `json:"documents"`
	Failed    int `json:"failed_documents"`
	Queries   int `json:"queries"`
	Skipped   int `json:"skipped"`
	Findings  int `json:"findings"`
}

type OutputFormatter struct {
	format string
}

func NewOutputFormatter(format string) *OutputFormatter {
	return &OutputFormatter{format: format}
}

// NewRunSummary 汇总各文档结果
func NewRunSummary(docs []pipeline.DocumentSummary) RunSummary {
	summary := RunSummary{RunID: utils.RunID(), Documents: docs}
	if summary.Documents == nil {
		summary.Documents = []pipeline.DocumentSummary{}
	}
	for _, doc := range docs {
		summary.Totals.Documents++
		if doc.Err != nil {
			summary.Totals.Failed++
		}
		summary.Totals.Queries += doc.Queries
		summary.Totals.Skipped += doc.Skipped
		summary.Totals.Findings += doc.Findings
	}
	return summary
}

func (of *OutputFormatter) PrintSummary(w io.Writer, docs []pipeline.DocumentSummary) error {
	summary := NewRunSummary(docs)

	switch strings.ToLower(of.format) {
	case "json":
		return of.formatJSON(w, summary)
	default:
		return of.formatText(w, summary)
	}
}

func (of *OutputFormatter) formatText(w io.Writer, summary RunSummary) error {
	if len(summary.Documents) == 0 {
		_, err := fmt.Fprintln(w, "未处理任何扫描报告")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "输入\t输出\t主机\t端口\t查询\t跳过\t失败\t漏洞\t状态")
	for _, doc := range summary.Documents {
		output := doc.Output
		if output == "" {
			output = "-"
		}
		status := "完成"
		if doc.Err != nil {
			status = "失败: " + doc.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			doc.Input, output, doc.Hosts, doc.Ports, doc.Queries, doc.Skipped, doc.Failed, doc.Findings, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n共 %d 个文件 (失败 %d)，查询 %d 次，跳过 %d 个端口，发现 %d 条漏洞\n",
		summary.Totals.Documents, summary.Totals.Failed, summary.Totals.Queries,
		summary.Totals.Skipped, summary.Totals.Findings)
	return err
}

func (of *OutputFormatter) formatJSON(w io.Writer, summary RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
