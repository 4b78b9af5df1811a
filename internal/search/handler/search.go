// Package handler provides HTTP handlers for the search service.
package handler

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/biz"
	"github.com/kart-io/sentinel-search/pkg/errors"
	"github.com/kart-io/sentinel-search/pkg/llm"
	"github.com/kart-io/sentinel-search/pkg/utils/response"
	"github.com/kart-io/sentinel-search/pkg/validator"
)

const healthProbeTimeout = 5 * time.Second

// SearchHandler handles search HTTP requests.
type SearchHandler struct {
	service   biz.Service
	pinger    llm.Pinger
	validator *validator.Validator
	metrics   http.Handler
	upgrader  websocket.Upgrader
}

// NewSearchHandler creates a new SearchHandler. pinger 可为 nil，此时健康检查报告 disconnected。
func NewSearchHandler(service biz.Service, pinger llm.Pinger, v *validator.Validator, metrics http.Handler) *SearchHandler {
	return &SearchHandler{
		service:   service,
		pinger:    pinger,
		validator: v,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Search 非流式搜索。
func (h *SearchHandler) Search(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	resp := h.service.Search(c.Request.Context(), req)
	response.OK(c, resp)
}

// bind 解析请求体，失败时写入错误响应。
func (h *SearchHandler) bind(c *gin.Context) (*model.SearchRequest, bool) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, h.bindError(c, err))
		return nil, false
	}
	return &req, true
}

func (h *SearchHandler) bindError(c *gin.Context, err error) error {
	if stderrors.Is(err, io.EOF) {
		return errors.ErrQueryRequired
	}

	lang := validator.LangEN
	if strings.HasPrefix(c.GetHeader("Accept-Language"), "zh") {
		lang = validator.LangZH
	}

	verrs := h.validator.Translate(err, lang)
	e := errors.ErrInvalidParam
	if verrs.FirstField() == "query" {
		e = errors.ErrQueryRequired
	}
	if lang == validator.LangZH {
		e = e.WithCause(err)
		e.MessageZH = verrs.First()
		return e
	}
	return e.WithMessage(verrs.First())
}

// HealthResponse 健康检查响应。
type HealthResponse struct {
	Status string `json:"status"`
	Ollama string `json:"ollama"`
}

// Health 探测 Ollama 可用性，服务自身始终报告 healthy。
func (h *SearchHandler) Health(c *gin.Context) {
	state := "disconnected"
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err == nil {
			state = "connected"
		} else {
			logger.Debugw("ollama probe failed", "error", err)
		}
	}
	response.OK(c, HealthResponse{Status: "healthy", Ollama: state})
}

// CacheStats 返回缓存统计。
func (h *SearchHandler) CacheStats(c *gin.Context) {
	response.OK(c, h.service.CacheStats(c.Request.Context()))
}

// ClearCache 清空所有缓存分区。
func (h *SearchHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		response.Fail(c, errors.ErrCacheUnavailable.WithCause(err))
		return
	}
	response.OK(c, gin.H{"message": "Cache cleared successfully"})
}

// Metrics exposes the Prometheus registry.
func (h *SearchHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		response.Fail(c, errors.ErrNotFound)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}
