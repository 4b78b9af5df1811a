package biz

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
	"github.com/kart-io/sentinel-search/pkg/llm"
)

const (
	answerTemperature     = 0.7
	suggestionTemperature = 0.5

	// DefaultSuggestionCount 追问建议条数。
	DefaultSuggestionCount = 3
)

// 固定回答文本。
const (
	InsufficientAnswer     = "I couldn't find enough relevant information to answer your question."
	generationErrorPrefix  = "Error generating answer: "
	pipelineErrorPrefix    = "An error occurred: "
	suggestionPromptFormat = `Based on the search query "%s", generate %d short, relevant follow-up search questions.
Return ONLY the questions, one per line. Do not number them. Do not add quotes.`
)

var suggestionPrefix = regexp.MustCompile(`^[\d\.\-\*\s"']+`)

// Generator 负责答案与追问建议生成。
// 答案使用 answer 模型，建议使用 planner 模型。
type Generator struct {
	answer          llm.ChatProvider
	planner         llm.ChatProvider
	suggestionCount int
	metrics         *metrics.SearchMetrics
}

// NewGenerator 创建生成器。suggestionCount<=0 时使用默认值。
func NewGenerator(answer, planner llm.ChatProvider, suggestionCount int, m *metrics.SearchMetrics) *Generator {
	if suggestionCount <= 0 {
		suggestionCount = DefaultSuggestionCount
	}
	return &Generator{
		answer:          answer,
		planner:         planner,
		suggestionCount: suggestionCount,
		metrics:         m,
	}
}

// BuildAnswerPrompt 构造带上下文与来源列表的回答提示词。
func BuildAnswerPrompt(query, contextText string, sources []model.Source) string {
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = fmt.Sprintf("- %s: %s", s.Label(), s.URL)
	}

	var b strings.Builder
	b.WriteString("You are an AI search assistant. Answer the user's question using the provided context from web sources.\n\n")
	fmt.Fprintf(&b, "User Question: %s\n\n", query)
	fmt.Fprintf(&b, "Context from web sources:\n%s\n\n", contextText)
	fmt.Fprintf(&b, "Sources:\n%s\n\n", strings.Join(lines, "\n"))
	b.WriteString(`Instructions:
1. Provide a comprehensive, accurate answer based on the context
2. Cite sources using [1], [2], etc. when making specific claims
3. If the context doesn't fully answer the question, say so
4. Be concise but thorough
5. Use clear, professional language

Answer:`)
	return b.String()
}

// Answer 非流式生成答案。
func (g *Generator) Answer(ctx context.Context, query, contextText string, sources []model.Source) (string, error) {
	start := time.Now()
	out, err := g.answer.Generate(ctx, BuildAnswerPrompt(query, contextText, sources),
		llm.WithTemperature(answerTemperature))
	g.metrics.RecordLLMCall("answer", time.Since(start), err)
	if err != nil {
		return "", err
	}
	logger.Infow("answer generated", "query", query, "length", len(out))
	return out, nil
}

// AnswerStream 流式生成答案，每个片段回调一次 onToken。
func (g *Generator) AnswerStream(ctx context.Context, query, contextText string, sources []model.Source, onToken func(string) error) error {
	start := time.Now()
	err := g.answer.GenerateStream(ctx, BuildAnswerPrompt(query, contextText, sources), onToken,
		llm.WithTemperature(answerTemperature))
	g.metrics.RecordLLMCall("answer_stream", time.Since(start), err)
	return err
}

// Suggestions 生成追问建议。失败时返回空列表。
func (g *Generator) Suggestions(ctx context.Context, query string) []string {
	start := time.Now()
	out, err := g.planner.Generate(ctx, fmt.Sprintf(suggestionPromptFormat, query, g.suggestionCount),
		llm.WithTemperature(suggestionTemperature))
	g.metrics.RecordLLMCall("suggest", time.Since(start), err)
	if err != nil {
		logger.Warnw("suggestion generation failed", "query", query, "error", err.Error())
		return []string{}
	}
	return ParseSuggestions(out, g.suggestionCount)
}

// ParseSuggestions 逐行清理模型输出：去掉行首编号、项目符号和引号，丢弃空行，保留前 n 条。
func ParseSuggestions(out string, n int) []string {
	suggestions := make([]string, 0, n)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cleaned := strings.Trim(suggestionPrefix.ReplaceAllString(line, ""), `"'`)
		if cleaned == "" {
			continue
		}
		suggestions = append(suggestions, cleaned)
		if len(suggestions) == n {
			break
		}
	}
	return suggestions
}
