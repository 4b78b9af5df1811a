package model

// SearchRequest 搜索请求，HTTP 与 WebSocket 共用。
type SearchRequest struct {
	Query    string `json:"query" binding:"required,notblank"`
	UseCache *bool  `json:"use_cache,omitempty"`
	Provider string `json:"provider,omitempty" binding:"omitempty,max=32"`
}

// CacheEnabled use_cache 缺省为 true。
func (r *SearchRequest) CacheEnabled() bool {
	return r.UseCache == nil || *r.UseCache
}

// SearchResponse 非流式搜索的响应。
type SearchResponse struct {
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Sources    []Source   `json:"sources"`
	Cached     bool       `json:"cached"`
	CacheStats CacheStats `json:"cache_stats"`
	Error      string     `json:"error,omitempty"`
}

// CacheStats 缓存命中统计与各分区大小。
type CacheStats struct {
	Hits               int64  `json:"hits"`
	Misses             int64  `json:"misses"`
	HitRate            string `json:"hit_rate"`
	QueryCacheSize     int    `json:"query_cache_size"`
	EmbeddingCacheSize int    `json:"embedding_cache_size"`
	SearchCacheSize    int    `json:"search_cache_size"`
}

// EventType 流式事件类型。
type EventType string

const (
	EventStatus      EventType = "status"
	EventCached      EventType = "cached"
	EventSources     EventType = "sources"
	EventToken       EventType = "token"
	EventSuggestions EventType = "suggestions"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event 流式事件。status 与 error 使用 Message，其余使用 Data。
type Event struct {
	Type    EventType `json:"type"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

// StatusEvent 创建 status 事件。
func StatusEvent(msg string) Event {
	return Event{Type: EventStatus, Message: msg}
}

// ErrorEvent 创建 error 事件。
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Message: msg}
}

// DataEvent 创建携带数据的事件。
func DataEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data}
}
