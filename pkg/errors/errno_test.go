package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	assert.Equal(t, 2101001, MakeCode(ServiceSearch, CategoryRequest, 1))
	assert.Equal(t, 9010001, MakeCode(ServiceLLM, CategoryNetwork, 1))
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := ErrSearchFailed.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.Nil(t, ErrSearchFailed.Unwrap(), "registered errno must stay untouched")
}

func TestErrnoMessage(t *testing.T) {
	assert.Equal(t, "查询不能为空", ErrQueryRequired.Message("zh-CN"))
	assert.Equal(t, "Query is required", ErrQueryRequired.Message("en"))
	assert.Equal(t, "custom", ErrInvalidParam.WithMessage("custom").MessageEN)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("handler: %w", ErrQueryRequired)
	assert.Equal(t, ErrQueryRequired.Code, FromError(wrapped).Code)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, codes.Internal, plain.GRPCStatus())
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrLLMUnavailable.Code)
	assert.True(t, ok)
	assert.Same(t, ErrLLMUnavailable, e)

	_, ok = Lookup(-1)
	assert.False(t, ok)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(&Errno{Code: ErrInternal.Code})
	})
}
