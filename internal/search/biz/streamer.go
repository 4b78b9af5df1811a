package biz

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/cache"
)

// 流式状态消息。
const (
	msgAnalyzing            = "Analyzing query..."
	msgSearching            = "Searching..."
	msgGenerating           = "Generating answer & suggestions..."
	msgProviderDoneTemplate = "Received results from %s"
)

// EmitFunc 发送一个流式事件。返回错误（通常是客户端断开）时流水线立即停止。
type EmitFunc func(model.Event) error

// CompletePayload complete 事件的数据。
type CompletePayload struct {
	Answer      string         `json:"answer"`
	Sources     []model.Source `json:"sources"`
	Suggestions []string       `json:"suggestions"`
}

// suggestionTask 后台追问建议任务。done 关闭后 result 可读。
type suggestionTask struct {
	done   chan struct{}
	result []string
}

func (t *suggestionTask) ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// startSuggestions 在后台池中生成追问建议。ctx 取消后任务随 LLM 调用一起退出。
func (o *Orchestrator) startSuggestions(ctx context.Context, query string) *suggestionTask {
	task := &suggestionTask{done: make(chan struct{})}
	run := func() {
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("suggestion task panic", "query", query, "panic", r)
				task.result = []string{}
			}
		}()
		task.result = o.generator.Suggestions(ctx, query)
	}

	if o.background != nil {
		o.background.Go(run)
	} else {
		go run()
	}
	return task
}

// Stream 执行流水线并按顺序推送事件：
// status* → sources → status → token* (其间至多一次 suggestions) → complete。
// 缓存命中时只推送 cached 与 suggestions。
func (o *Orchestrator) Stream(ctx context.Context, req *model.SearchRequest, emit EmitFunc) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := NewPipelineState(req.Query, req.CacheEnabled(), o.fetcher.Resolve(req.Provider))
	logger.Infow("stream search started", "query", req.Query, "provider", st.Provider)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("stream pipeline panic",
				"query", req.Query,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%v", r)
			_ = emit(model.ErrorEvent(pipelineErrorPrefix + err.Error()))
		}
		o.metrics.RecordQuery("stream", st.Cached, err)
	}()

	if st.UseCache {
		cached, ok := o.cache.GetQueryResult(ctx, st.Query.Raw)
		o.metrics.RecordCacheLookup(string(cache.PartitionQuery), ok)
		if ok {
			st.Cached = true
			return o.streamCached(ctx, st.Query.Raw, cached, emit)
		}
	}
	st.Stage = StageAnalyzeQuery

	if err := emit(model.StatusEvent(msgAnalyzing)); err != nil {
		return err
	}
	if err := o.advance(ctx, st); err != nil {
		return err
	}

	if err := emit(model.StatusEvent(msgSearching)); err != nil {
		return err
	}
	var emitErr error
	st.OnProviderDone = func(provider string) {
		if emitErr == nil {
			emitErr = emit(model.StatusEvent(fmt.Sprintf(msgProviderDoneTemplate, provider)))
		}
	}
	if err := o.advance(ctx, st); err != nil {
		return err
	}
	if emitErr != nil {
		return emitErr
	}

	if err := o.advance(ctx, st); err != nil {
		_ = emit(model.ErrorEvent(pipelineErrorPrefix + err.Error()))
		return err
	}

	if err := emit(model.DataEvent(model.EventSources, st.Sources)); err != nil {
		return err
	}
	if err := emit(model.StatusEvent(msgGenerating)); err != nil {
		return err
	}

	return o.streamAnswer(ctx, st, emit)
}

// streamCached 缓存命中：推送 cached，再推送（必要时重新生成并回写的）追问建议。
func (o *Orchestrator) streamCached(ctx context.Context, query string, cached *model.QueryResult, emit EmitFunc) error {
	if err := emit(model.DataEvent(model.EventCached, cached)); err != nil {
		return err
	}
	if len(cached.Suggestions) > 0 {
		return emit(model.DataEvent(model.EventSuggestions, cached.Suggestions))
	}

	suggestions := o.generator.Suggestions(ctx, query)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(suggestions) > 0 {
		updated := *cached
		updated.Suggestions = suggestions
		if updated.Query == "" {
			updated.Query = query
		}
		o.storeResult(ctx, &updated)
	}
	return emit(model.DataEvent(model.EventSuggestions, suggestions))
}

// streamAnswer 流式输出答案，同时等待后台追问建议。
// 建议在就绪后的下一个 token 之后推送，若 token 流结束时仍未就绪则等待其完成后推送。
func (o *Orchestrator) streamAnswer(ctx context.Context, st *PipelineState, emit EmitFunc) error {
	query := st.Query.Raw
	task := o.startSuggestions(ctx, query)
	sent := false

	pollSuggestions := func() error {
		if sent || !task.ready() {
			return nil
		}
		sent = true
		return emit(model.DataEvent(model.EventSuggestions, task.result))
	}

	var answer strings.Builder
	if st.Context == "" {
		answer.WriteString(InsufficientAnswer)
		if err := emit(model.DataEvent(model.EventToken, InsufficientAnswer)); err != nil {
			return err
		}
	} else {
		var emitErr error
		err := o.generator.AnswerStream(ctx, query, st.Context, st.Sources, func(token string) error {
			answer.WriteString(token)
			if emitErr = emit(model.DataEvent(model.EventToken, token)); emitErr != nil {
				return emitErr
			}
			emitErr = pollSuggestions()
			return emitErr
		})
		if err != nil {
			if emitErr != nil {
				return emitErr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorw("answer stream failed", "query", query, "error", err.Error())
			_ = emit(model.ErrorEvent(generationErrorPrefix + err.Error()))
			return err
		}
	}

	if !sent {
		select {
		case <-task.done:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pollSuggestions(); err != nil {
		return err
	}

	suggestions := task.result
	st.Answer = answer.String()
	st.Stage = StageComplete

	if st.Context != "" {
		o.storeResult(ctx, &model.QueryResult{
			Query:       query,
			Answer:      st.Answer,
			Sources:     st.Sources,
			Suggestions: suggestions,
		})
	}

	return emit(model.DataEvent(model.EventComplete, CompletePayload{
		Answer:      st.Answer,
		Sources:     st.Sources,
		Suggestions: suggestions,
	}))
}
