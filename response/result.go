package response

import (
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

// Result carries either a payload or an error together with the status the
// handler suggests for it.
type Result[T any] struct {
	IsError    bool
	Error      error
	Payload    T
	StatusCode int
}

func Ok[T any](payload T) Result[T] {
	return OkStatus(fasthttp.StatusOK, payload)
}

func OkStatus[T any](status int, payload T) Result[T] {
	return Result[T]{Payload: payload, StatusCode: status}
}

// Fail builds an error result; status 0 means 500.
func Fail[T any](status int, err error) Result[T] {
	if status == 0 {
		status = fasthttp.StatusInternalServerError
	}
	if err == nil {
		err = types.ErrInternalError
	}
	return Result[T]{IsError: true, Error: err, StatusCode: status}
}

type errorPayload struct {
	Error string `json:"error"`
}

// SendResult writes the payload as JSON. Errors go out as {"error": ...}
// and are marked non-cacheable.
func SendResult[T any](ctx *types.RequestCtx, result Result[T]) error {
	if result.IsError {
		return sendFailure(ctx, result.StatusCode, result.Error)
	}

	return SendJSON(ctx, result.StatusCode, result.Payload)
}

func sendFailure(ctx *types.RequestCtx, status int, err error) error {
	ctx.Response.Header.Set("Cache-Control", "no-store")
	return SendJSON(ctx, status, errorPayload{Error: err.Error()})
}
