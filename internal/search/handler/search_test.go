package handler

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/biz"
	"github.com/kart-io/sentinel-search/pkg/errors"
	"github.com/kart-io/sentinel-search/pkg/infra/middleware"
	"github.com/kart-io/sentinel-search/pkg/utils/json"
	"github.com/kart-io/sentinel-search/pkg/validator"
)

type fakeService struct {
	mu        sync.Mutex
	requests  []model.SearchRequest
	events    []model.Event
	streamErr error
	clearErr  error
	cleared   int
}

func (f *fakeService) record(req *model.SearchRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, *req)
}

func (f *fakeService) lastRequest() model.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeService) Search(_ context.Context, req *model.SearchRequest) *model.SearchResponse {
	f.record(req)
	return &model.SearchResponse{
		Query:   req.Query,
		Answer:  "Python is a language.",
		Sources: []model.Source{{Title: "Python", URL: "https://python.org", Domain: "python.org"}},
	}
}

func (f *fakeService) Stream(_ context.Context, req *model.SearchRequest, emit biz.EmitFunc) error {
	f.record(req)
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeService) CacheStats(context.Context) model.CacheStats {
	return model.CacheStats{Hits: 3, Misses: 1, HitRate: "75.00%", QueryCacheSize: 2}
}

func (f *fakeService) ClearCache(context.Context) error {
	f.cleared++
	return f.clearErr
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestEngine(t *testing.T, svc biz.Service, pinger *fakePinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := validator.Install()
	require.NoError(t, err)

	var h *SearchHandler
	if pinger != nil {
		h = NewSearchHandler(svc, *pinger, v, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}))
	} else {
		h = NewSearchHandler(svc, nil, v, nil)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/search", h.Search)
	r.POST("/search/stream", h.Stream)
	r.GET("/ws", h.WebSocket)
	r.GET("/health", h.Health)
	r.GET("/cache-stats", h.CacheStats)
	r.POST("/clear-cache", h.ClearCache)
	r.GET("/metrics", h.Metrics)
	return r
}

func doJSON(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSearch(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(t, svc, nil)

	w := doJSON(r, http.MethodPost, "/search", `{"query":"What is Python?","provider":"google"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "What is Python?", resp.Query)
	assert.Equal(t, "Python is a language.", resp.Answer)
	assert.Len(t, resp.Sources, 1)

	got := svc.lastRequest()
	assert.Equal(t, "google", got.Provider)
	assert.True(t, got.CacheEnabled(), "use_cache 缺省为 true")

	doJSON(r, http.MethodPost, "/search", `{"query":"go","use_cache":false}`)
	got = svc.lastRequest()
	assert.False(t, got.CacheEnabled())
}

func TestSearch_BadRequest(t *testing.T) {
	r := newTestEngine(t, &fakeService{}, nil)

	tests := []struct {
		name    string
		body    string
		header  []string
		code    int
		message string
	}{
		{name: "空请求体", body: "", code: errors.ErrQueryRequired.Code, message: "Query is required"},
		{name: "缺少查询", body: `{"provider":"google"}`, code: errors.ErrQueryRequired.Code, message: "query is a required field"},
		{name: "空白查询", body: `{"query":"  \t"}`, code: errors.ErrQueryRequired.Code, message: "query must not be blank"},
		{
			name: "空白查询中文", body: `{"query":" "}`, header: []string{"Accept-Language", "zh-CN"},
			code: errors.ErrQueryRequired.Code, message: "query不能为空白",
		},
		{name: "供应商过长", body: `{"query":"go","provider":"` + strings.Repeat("x", 33) + `"}`, code: errors.ErrInvalidParam.Code},
		{name: "非法 JSON", body: `{"query":`, code: errors.ErrInvalidParam.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/search", tt.body, tt.header...)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.RequestID)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestStream_SSE(t *testing.T) {
	svc := &fakeService{events: []model.Event{
		model.StatusEvent("Analyzing query..."),
		model.DataEvent(model.EventToken, "Python "),
		model.DataEvent(model.EventComplete, map[string]any{"answer": "Python "}),
	}}
	r := newTestEngine(t, svc, nil)

	w := doJSON(r, http.MethodPost, "/search/stream", `{"query":"python"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, "event:status")
	assert.Contains(t, body, `data:{"type":"status","message":"Analyzing query..."}`)
	assert.Contains(t, body, `data:{"type":"token","data":"Python "}`)
	assert.Less(t, strings.Index(body, "event:status"), strings.Index(body, "event:token"))
	assert.Less(t, strings.Index(body, "event:token"), strings.Index(body, "event:complete"))
}

func TestStream_SSEBadRequest(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(t, svc, nil)

	w := doJSON(r, http.MethodPost, "/search/stream", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.requests)
}

func TestWebSocket(t *testing.T) {
	svc := &fakeService{
		events: []model.Event{
			model.StatusEvent("Searching..."),
			model.DataEvent(model.EventComplete, map[string]any{"answer": "ok"}),
		},
		streamErr: stderrors.New("llm down"),
	}
	srv := httptest.NewServer(newTestEngine(t, svc, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() model.Event {
		t.Helper()
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev model.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	// 缺少查询返回错误并继续读取
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"use_cache":true}`)))
	ev := read()
	assert.Equal(t, model.EventError, ev.Type)
	assert.Equal(t, "Query is required", ev.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, model.EventError, read().Type)

	// 流水线错误不关闭连接
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"query":"python","provider":"all"}`)))
		assert.Equal(t, model.EventStatus, read().Type)
		assert.Equal(t, model.EventComplete, read().Type)
	}
	assert.Equal(t, "all", svc.lastRequest().Provider)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		pinger *fakePinger
		want   string
	}{
		{name: "已连接", pinger: &fakePinger{}, want: "connected"},
		{name: "探测失败", pinger: &fakePinger{err: stderrors.New("connection refused")}, want: "disconnected"},
		{name: "未配置", pinger: nil, want: "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine(t, &fakeService{}, tt.pinger)
			w := doJSON(r, http.MethodGet, "/health", "")
			require.Equal(t, http.StatusOK, w.Code)

			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, HealthResponse{Status: "healthy", Ollama: tt.want}, body)
		})
	}
}

func TestCacheEndpoints(t *testing.T) {
	svc := &fakeService{}
	r := newTestEngine(t, svc, &fakePinger{})

	w := doJSON(r, http.MethodGet, "/cache-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "75.00%", stats.HitRate)

	w = doJSON(r, http.MethodPost, "/clear-cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Cache cleared successfully"}`, w.Body.String())
	assert.Equal(t, 1, svc.cleared)

	svc.clearErr = stderrors.New("badger closed")
	w = doJSON(r, http.MethodPost, "/clear-cache", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errors.ErrCacheUnavailable.Code, decodeError(t, w).Code)
}

func TestMetrics(t *testing.T) {
	w := doJSON(newTestEngine(t, &fakeService{}, &fakePinger{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())

	w = doJSON(newTestEngine(t, &fakeService{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
