package model

import "fmt"

// ServiceQuery 一次漏洞查询的单位
type ServiceQuery struct {
	Product string `json:"product"`
	Version string `json:"version"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

func (q ServiceQuery) String() string {
	return fmt.Sprintf("%s %s @ %s:%d", q.Product, q.Version, q.Host, q.Port)
}

// Finding 远端返回的一条漏洞记录
type Finding struct {
	Index       int     `json:"index"` // 在响应数组中的位置，从 1 开始
	Score       float64 `json:"score"`
	ScoreText   string  `json:"score_text,omitempty"` // 报告中显示的分数，为空时由 Score 格式化
	Link        string  `json:"link"`
	Description string  `json:"description"`
}
