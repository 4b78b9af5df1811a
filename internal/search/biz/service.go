// Package biz 实现搜索问答流水线：缓存检查、查询分析、多供应商搜索、检索与答案生成。
package biz

import (
	"context"

	"github.com/kart-io/sentinel-search/internal/model"
)

// Service 定义搜索服务接口。
type Service interface {
	// Search 执行非流式搜索。
	Search(ctx context.Context, req *model.SearchRequest) *model.SearchResponse
	// Stream 执行流式搜索，事件通过 emit 按序推送。
	Stream(ctx context.Context, req *model.SearchRequest, emit EmitFunc) error
	// CacheStats 获取缓存统计。
	CacheStats(ctx context.Context) model.CacheStats
	// ClearCache 清空缓存。
	ClearCache(ctx context.Context) error
}

var _ Service = (*Orchestrator)(nil)
