// Package common 中间件与响应层共享的请求上下文工具。
package common

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// HeaderXRequestID 请求 ID 的传播头。
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// GetRequestID 取出请求 ID，未设置时返回空串。
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// GenerateRequestID 生成 ULID 请求 ID，同一毫秒内单调递增。
func GenerateRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
