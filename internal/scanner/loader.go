package scanner

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"NmapVulners/internal/model"
)

// ParseError 扫描报告无法解析
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("解析扫描报告 %s 失败: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadFile 读取并解析一个 nmap XML 文件
func LoadFile(path string) (*model.ScanDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开扫描报告失败: %w", err)
	}
	defer f.Close()

	return parse(path, f)
}

// Parse 从 r 解析 nmap XML
func Parse(r io.Reader) (*model.ScanDocument, error) {
	return parse("<stream>", r)
}

func parse(source string, r io.Reader) (*model.ScanDocument, error) {
	var doc model.ScanDocument
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if err := checkTrailing(dec); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return &doc, nil
}

// checkTrailing 根元素之后只允许注释、处理指令和空白
func checkTrailing(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return fmt.Errorf("根元素之后存在多余内容: %q", bytes.TrimSpace(t))
			}
		case xml.StartElement:
			return fmt.Errorf("根元素之后存在多余元素 <%s>", t.Name.Local)
		default:
			return fmt.Errorf("根元素之后存在多余内容 (%T)", t)
		}
	}
}
