package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
	"github.com/kart-io/sentinel-search/pkg/llm"
	"github.com/kart-io/sentinel-search/pkg/utils/json"
)

const analyzeTemperature = 0.3

const analyzePromptTemplate = `Analyze this search query and provide:
1. The main intent/topic
2. Key entities or concepts
3. Whether it needs real-time information
4. 2-3 refined search queries to find relevant information

Query: %s

Respond in JSON format:
{
  "intent": "brief description",
  "entities": ["entity1", "entity2"],
  "needs_realtime": true/false,
  "search_queries": ["query1", "query2"]
}`

var errNoJSON = errors.New("no JSON object in response")

// Analyzer 调用规划模型分析查询意图并改写搜索词。
type Analyzer struct {
	chat    llm.ChatProvider
	metrics *metrics.SearchMetrics
}

// NewAnalyzer 创建查询分析器。
func NewAnalyzer(chat llm.ChatProvider, m *metrics.SearchMetrics) *Analyzer {
	return &Analyzer{chat: chat, metrics: m}
}

// Analyze 分析查询。调用或解析失败时返回 FallbackAnalysis，从不返回错误。
func (a *Analyzer) Analyze(ctx context.Context, query string) *model.QueryAnalysis {
	start := time.Now()
	resp, err := a.chat.Generate(ctx, BuildAnalyzePrompt(query), llm.WithTemperature(analyzeTemperature))
	a.metrics.RecordLLMCall("analyze", time.Since(start), err)
	if err != nil {
		logger.Warnw("query analysis failed, using fallback", "query", query, "error", err.Error())
		return FallbackAnalysis(query)
	}

	analysis, err := ParseAnalysis(resp)
	if err != nil {
		logger.Warnw("query analysis unparsable, using fallback", "query", query, "error", err.Error())
		return FallbackAnalysis(query)
	}
	if len(analysis.SearchQueries) == 0 {
		analysis.SearchQueries = []string{query}
	}
	if analysis.Entities == nil {
		analysis.Entities = []string{}
	}

	logger.Debugw("query analyzed",
		"query", query,
		"intent", analysis.Intent,
		"search_queries", analysis.SearchQueries,
	)
	return analysis
}

// BuildAnalyzePrompt 构造分析提示词。
func BuildAnalyzePrompt(query string) string {
	return fmt.Sprintf(analyzePromptTemplate, query)
}

// ParseAnalysis 从模型输出中提取 JSON 对象。
// 优先取 ```json 围栏内容，否则取第一个 '{' 到最后一个 '}'。
func ParseAnalysis(resp string) (*model.QueryAnalysis, error) {
	text := strings.TrimSpace(resp)

	if i := strings.Index(text, "```json"); i >= 0 {
		body := text[i+len("```json"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		text = strings.TrimSpace(body)
	} else if i := strings.Index(text, "{"); i >= 0 {
		j := strings.LastIndex(text, "}")
		if j < i {
			return nil, errNoJSON
		}
		text = text[i : j+1]
	} else {
		return nil, errNoJSON
	}

	var analysis model.QueryAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	queries := analysis.SearchQueries[:0]
	for _, q := range analysis.SearchQueries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	analysis.SearchQueries = queries
	return &analysis, nil
}

// FallbackAnalysis 分析失败时使用的固定结果。
func FallbackAnalysis(query string) *model.QueryAnalysis {
	return &model.QueryAnalysis{
		Intent:        query,
		Entities:      []string{},
		NeedsRealtime: true,
		SearchQueries: []string{query},
	}
}
