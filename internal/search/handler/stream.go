package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/pkg/utils/json"
)

const (
	wsWriteTimeout   = 10 * time.Second
	msgQueryRequired = "Query is required"
	msgInvalidFrame  = "Invalid message"
)

// Stream 以 Server-Sent Events 推送流水线事件，事件名即事件类型。
func (h *SearchHandler) Stream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	emit := func(ev model.Event) error {
		data, err := json.MarshalString(ev)
		if err != nil {
			return err
		}
		if err := sse.Encode(c.Writer, sse.Event{Event: string(ev.Type), Data: data}); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if err := h.service.Stream(c.Request.Context(), req, emit); err != nil {
		logger.Infow("stream ended early", "query", req.Query, "error", err)
	}
}

// WebSocket 在单个连接上循环读取查询帧，并按序写回事件。
func (h *SearchHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	var (
		mu       sync.Mutex
		writeErr error
	)
	write := func(ev model.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			writeErr = err
			return err
		}
		return nil
	}

	ctx := c.Request.Context()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnw("websocket read failed", "error", err)
			}
			return
		}

		var req model.SearchRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			if write(model.ErrorEvent(msgInvalidFrame)) != nil {
				return
			}
			continue
		}
		if strings.TrimSpace(req.Query) == "" {
			if write(model.ErrorEvent(msgQueryRequired)) != nil {
				return
			}
			continue
		}

		if err := h.service.Stream(ctx, &req, write); err != nil {
			if writeErr != nil {
				return
			}
			logger.Warnw("websocket stream failed", "query", req.Query, "error", err)
		}
	}
}
