package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// 通用错误
var (
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})

	ErrNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNotFound, 0),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	ErrRateLimited = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRateLimit, 0),
		HTTP:      http.StatusTooManyRequests,
		GRPCCode:  codes.ResourceExhausted,
		MessageEN: "Too many requests",
		MessageZH: "请求过于频繁",
	})

	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})
)

// 搜索服务错误
var (
	ErrQueryRequired = Register(&Errno{
		Code:      MakeCode(ServiceSearch, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Query is required",
		MessageZH: "查询不能为空",
	})

	ErrUnknownProvider = Register(&Errno{
		Code:      MakeCode(ServiceSearch, CategoryRequest, 2),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Unknown search provider",
		MessageZH: "未知的搜索供应商",
	})

	ErrSearchFailed = Register(&Errno{
		Code:      MakeCode(ServiceSearch, CategoryNetwork, 1),
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Search provider failed",
		MessageZH: "搜索供应商调用失败",
	})

	ErrSearchTimeout = Register(&Errno{
		Code:      MakeCode(ServiceSearch, CategoryTimeout, 1),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Search timed out",
		MessageZH: "搜索超时",
	})

	ErrCacheUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceSearch, CategoryCache, 1),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Cache unavailable",
		MessageZH: "缓存不可用",
	})
)

// LLM 错误
var (
	ErrLLMUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceLLM, CategoryNetwork, 1),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Language model service unavailable",
		MessageZH: "大模型服务不可用",
	})

	ErrGenerationFailed = Register(&Errno{
		Code:      MakeCode(ServiceLLM, CategoryInternal, 1),
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Internal,
		MessageEN: "Answer generation failed",
		MessageZH: "答案生成失败",
	})
)
