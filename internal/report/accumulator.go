package report

import (
	"NmapVulners/internal/model"
)

// Accumulator 向报告追加漏洞，每追加一条就把完整报告写入检查点文件。
// 只能由一个 goroutine 使用
type Accumulator struct {
	report     *Report
	checkpoint string
}

// NewAccumulator checkpoint 为空时不写检查点
func NewAccumulator(r *Report, checkpoint string) *Accumulator {
	return &Accumulator{report: r, checkpoint: checkpoint}
}

// Start 用只有标题的报告初始化检查点
func (a *Accumulator) Start() error {
	return a.flush()
}

// Append 按顺序追加一次查询的全部漏洞。检查点写入失败不影响追加，
// 返回第一个写入错误
func (a *Accumulator) Append(query model.ServiceQuery, findings []model.Finding) error {
	var firstErr error
	for _, f := range findings {
		a.report.Add(query, f)
		if err := a.flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Accumulator) Report() *Report {
	return a.report
}

func (a *Accumulator) flush() error {
	if a.checkpoint == "" {
		return nil
	}
	return Persist(a.checkpoint, a.report.Render())
}
