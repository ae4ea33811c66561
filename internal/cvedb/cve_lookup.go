package cvedb

import (
	"context"

	"NmapVulners/internal/metrics"
	"NmapVulners/internal/model"
	"NmapVulners/internal/utils"

	"golang.org/x/sync/singleflight"
)

// Lookuper 根据服务查询漏洞
type Lookuper interface {
	Lookup(ctx context.Context, query model.ServiceQuery) ([]model.Finding, error)
}

// CachedClient 在 Lookuper 前加一层运行内缓存，
// 相同 (product, version) 只向远端查询一次，并发的相同查询合并为一次
type CachedClient struct {
	next    Lookuper
	cache   *LookupCache
	group   singleflight.Group
	logger  *utils.Logger
	metrics *metrics.Collector
}

func NewCachedClient(next Lookuper, cache *LookupCache, collector *metrics.Collector) *CachedClient {
	return &CachedClient{
		next:    next,
		cache:   cache,
		logger:  utils.NewLogger("cve-lookup"),
		metrics: collector,
	}
}

func (cc *CachedClient) Lookup(ctx context.Context, query model.ServiceQuery) ([]model.Finding, error) {
	if findings, ok := cc.cached(query); ok {
		cc.metrics.Lookup(metrics.OutcomeCached)
		return findings, nil
	}

	key := query.Product + "\x00" + query.Version
	v, err, _ := cc.group.Do(key, func() (interface{}, error) {
		if findings, ok := cc.cached(query); ok {
			return findings, nil
		}

		findings, err := cc.next.Lookup(ctx, query)
		if err != nil {
			// 传输错误不缓存，后续相同查询仍会重试远端
			return nil, err
		}
		if err := cc.cache.Put(query.Product, query.Version, findings); err != nil {
			cc.logger.Warn("缓存 %s %s 失败: %v", query.Product, query.Version, err)
		}
		return findings, nil
	})
	if err != nil {
		return nil, err
	}

	findings, _ := v.([]model.Finding)
	return append([]model.Finding(nil), findings...), nil
}

func (cc *CachedClient) cached(query model.ServiceQuery) ([]model.Finding, bool) {
	findings, ok, err := cc.cache.Get(query.Product, query.Version)
	if err != nil {
		cc.logger.Warn("读取缓存失败: %v", err)
		return nil, false
	}
	if ok {
		cc.logger.Debug("缓存命中: %s %s (%d 条)", query.Product, query.Version, len(findings))
	}
	return findings, ok
}
