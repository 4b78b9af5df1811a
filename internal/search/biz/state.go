package biz

import (
	"github.com/kart-io/sentinel-search/internal/model"
)

// Stage 流水线阶段。
type Stage int

const (
	StageCacheCheck Stage = iota
	StageAnalyzeQuery
	StageSearch
	StageRetrieve
	StageGenerate
	StageComplete
)

var stageNames = [...]string{
	StageCacheCheck:   "cache_check",
	StageAnalyzeQuery: "analyze_query",
	StageSearch:       "search",
	StageRetrieve:     "retrieve",
	StageGenerate:     "generate",
	StageComplete:     "complete",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// PipelineState 在各阶段之间传递的状态。每个阶段只写自己负责的字段并设置下一阶段。
type PipelineState struct {
	Stage    Stage
	Query    model.Query
	UseCache bool
	// Provider 已解析的供应商名称，可能为 model.ProviderAll。
	Provider string

	Analysis  *model.QueryAnalysis
	Bundle    *model.SearchBundle
	Retrieval *model.RetrievalResult
	Context   string

	Answer  string
	Sources []model.Source
	Cached  bool

	// OnProviderDone provider=all 时每个供应商完成后回调一次。
	OnProviderDone func(provider string)
}

// NewPipelineState 创建处于 CacheCheck 阶段的初始状态。
func NewPipelineState(query string, useCache bool, provider string) *PipelineState {
	return &PipelineState{
		Stage:    StageCacheCheck,
		Query:    model.NewQuery(query),
		UseCache: useCache,
		Provider: provider,
		Sources:  []model.Source{},
	}
}

// Done 是否已到达终态。
func (s *PipelineState) Done() bool {
	return s.Stage == StageComplete
}
