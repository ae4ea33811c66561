package scanner

import (
	"errors"

	"NmapVulners/internal/model"
)

// DefaultVersion 服务未给出版本时使用的默认值。
// 会把查询落到真实存在的 1.0 版本上，结果可能不准确，保留以兼容旧报告。
const DefaultVersion = "1.0"

var (
	// ErrNoService 端口没有识别到服务
	ErrNoService = errors.New("未检测到服务")
	// ErrServiceUnresolved 服务既没有 product 也没有 name
	ErrServiceUnresolved = errors.New("服务缺少名称和产品信息")
)

// ResolveService 把端口上的服务转换成查询：
// product 优先，缺失时用 name；version 缺失时用 DefaultVersion
func ResolveService(addr string, port model.Port) (model.ServiceQuery, error) {
	service := port.Service
	if service == nil {
		return model.ServiceQuery{}, ErrNoService
	}

	product := service.Product
	if product == "" {
		product = service.Name
	}
	if product == "" {
		return model.ServiceQuery{}, ErrServiceUnresolved
	}

	version := service.Version
	if version == "" {
		version = DefaultVersion
	}

	return model.ServiceQuery{
		Product: product,
		Version: version,
		Host:    addr,
		Port:    port.PortID,
	}, nil
}
