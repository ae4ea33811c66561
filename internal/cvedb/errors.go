package cvedb

import (
	"errors"
	"fmt"
)

// ErrConnectivity 预检无法连接漏洞情报服务
var ErrConnectivity = errors.New("无法连接漏洞情报服务")

// TransportError 单次查询在传输层失败
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("请求 %s 失败: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError 权威响应中某个条目缺少字段
type MalformedResponseError struct {
	Index int // 从 1 开始
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("响应条目 #%d 无法解析: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("响应条目 #%d 缺少字段 %s", e.Index, e.Field)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsTransportError 判断是否为传输层错误
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
