// Package pipeline 把扫描报告逐个转换成漏洞报告：
// 解析 → 过滤主机/端口 → 解析服务 → 查询 → 按顺序写入报告。
package pipeline

import (
	"context"
	"errors"

	"NmapVulners/internal/cvedb"
	"NmapVulners/internal/metrics"
	"NmapVulners/internal/model"
	"NmapVulners/internal/report"
	"NmapVulners/internal/scanner"
	"NmapVulners/internal/utils"

	"golang.org/x/sync/errgroup"
)

// Options 流水线选项
type Options struct {
	Workers     int    // 并发查询数，1 为完全串行
	ScratchFile string // 检查点文件，为空时不写
}

// DocumentSummary 单个输入文件的处理结果
type DocumentSummary struct {
	Input    string `json:"input"`
	Output   string `json:"output,omitempty"`
	Hosts    int    `json:"hosts"`
	Ports    int    `json:"ports"`
	Queries  int    `json:"queries"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed_lookups"`
	Findings int    `json:"findings"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Auditor 串行处理输入文件，文件内的查询可以并发，
// 但结果总是按 (主机, 端口, 响应序号) 的顺序写入报告
type Auditor struct {
	lookup      cvedb.Lookuper
	workers     int
	scratchFile string
	logger      *utils.Logger
	metrics     *metrics.Collector
}

func NewAuditor(lookup cvedb.Lookuper, opts Options, collector *metrics.Collector) *Auditor {
	return &Auditor{
		lookup:      lookup,
		workers:     max(1, opts.Workers),
		scratchFile: opts.ScratchFile,
		logger:      utils.NewLogger("pipeline"),
		metrics:     collector,
	}
}

// Run 依次处理所有输入，单个文件失败不影响其他文件；ctx 取消后停止
func (a *Auditor) Run(ctx context.Context, inputs []string) []DocumentSummary {
	if len(inputs) == 0 {
		a.logger.Warn("没有指定扫描报告，未处理任何文件")
		return nil
	}

	summaries := make([]DocumentSummary, 0, len(inputs))
	for _, input := range inputs {
		if ctx.Err() != nil {
			a.logger.Warn("运行已取消，跳过剩余 %d 个文件", len(inputs)-len(summaries))
			break
		}
		summaries = append(summaries, a.ProcessFile(ctx, input))
	}
	return summaries
}

// ProcessFile 处理一个扫描报告并写出对应的 .md 文件
func (a *Auditor) ProcessFile(ctx context.Context, input string) DocumentSummary {
	summary := DocumentSummary{Input: input}
	log := a.logger.WithField("document", input)

	log.Info("解析数据: %s", input)
	doc, err := scanner.LoadFile(input)
	if err != nil {
		log.Error("%v", err)
		return a.fail(summary, err)
	}

	queries := a.collectQueries(log, doc, &summary)
	summary.Queries = len(queries)

	acc := report.NewAccumulator(report.New(), a.scratchFile)
	if err := acc.Start(); err != nil {
		log.Warn("初始化检查点失败: %v", err)
	}

	a.lookupAll(ctx, log, queries, acc, &summary)
	if err := ctx.Err(); err != nil {
		log.Warn("运行已取消，最近的结果保存在 %s", a.scratchFile)
		return a.fail(summary, err)
	}

	output := report.OutputName(input)
	if err := report.Persist(output, acc.Report().Render()); err != nil {
		log.Error("保存报告失败: %v", err)
		return a.fail(summary, err)
	}
	summary.Output = output

	a.metrics.Document(metrics.DocumentOK)
	log.Info("报告已保存: %s (%d 条漏洞)", output, summary.Findings)
	return summary
}

func (a *Auditor) fail(summary DocumentSummary, err error) DocumentSummary {
	summary.Err = err
	summary.Error = err.Error()
	a.metrics.Document(metrics.DocumentFailed)
	return summary
}

// collectQueries 按文档顺序列出所有可查询的服务
func (a *Auditor) collectQueries(log *utils.Logger, doc *model.ScanDocument, summary *DocumentSummary) []model.ServiceQuery {
	var queries []model.ServiceQuery

	for _, host := range scanner.ActiveHosts(doc) {
		summary.Hosts++
		addr, err := host.PrimaryAddress()
		if err != nil {
			log.Error("存活主机无法确定地址，已跳过: %v", err)
			a.metrics.Skipped("no_address")
			summary.Skipped += len(scanner.ActivePorts(host))
			continue
		}
		log.Info("检查主机 %s: 在线", addr)

		for _, port := range scanner.ActivePorts(host) {
			summary.Ports++
			log.Info("检查 %s:%d", addr, port.PortID)

			query, err := scanner.ResolveService(addr, port)
			switch {
			case errors.Is(err, scanner.ErrNoService):
				log.Warn("%s:%d 未检测到服务", addr, port.PortID)
				a.metrics.Skipped("no_service")
				summary.Skipped++
				continue
			case err != nil:
				log.Warn("%s:%d %v", addr, port.PortID, err)
				a.metrics.Skipped("unresolved")
				summary.Skipped++
				continue
			}
			queries = append(queries, query)
		}
	}
	return queries
}

type lookupSlot struct {
	findings []model.Finding
	err      error
	done     chan struct{}
}

// lookupAll 并发查询，按 queries 顺序逐个等待结果并追加到报告
func (a *Auditor) lookupAll(ctx context.Context, log *utils.Logger, queries []model.ServiceQuery, acc *report.Accumulator, summary *DocumentSummary) {
	slots := make([]lookupSlot, len(queries))
	for i := range slots {
		slots[i].done = make(chan struct{})
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(a.workers)
		for i := range queries {
			i := i
			g.Go(func() error {
				defer close(slots[i].done)
				slots[i].findings, slots[i].err = a.lookup.Lookup(ctx, queries[i])
				return nil
			})
		}
		g.Wait()
	}()

	for i, query := range queries {
		<-slots[i].done
		slot := slots[i]

		if slot.err != nil {
			summary.Failed++
			if ctx.Err() == nil {
				log.Warn("查询 %s 失败，按无结果处理: %v", query, slot.err)
			}
			continue
		}

		summary.Findings += len(slot.findings)
		a.metrics.Findings(len(slot.findings))
		if err := acc.Append(query, slot.findings); err != nil {
			log.Warn("写入检查点失败: %v", err)
		}
	}
}
