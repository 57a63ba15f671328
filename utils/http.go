package utils

import (
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID uint64 `json:"request_id,omitempty"`
}

func CreateErrorResponse(ctx *types.RequestCtx, status int, errorText, message string) {
	ctx.Response.ResetBody()
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")

	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")

	if requestID := ctx.Request.Header.Peek("X-Request-Id"); len(requestID) > 0 {
		ctx.Response.Header.SetBytesV("X-Request-Id", requestID)
	}

	body, err := Marshal(ErrorBody{
		Error:     errorText,
		Message:   message,
		RequestID: ctx.Props.RequestID(),
	})
	if err != nil {
		ctx.SetBodyString(`{"error":"Internal Server Error","message":"An unexpected error occurred"}`)
		return
	}

	ctx.SetBody(body)
}

func CreateInternalErrorResponse(ctx *types.RequestCtx, message string) {
	CreateErrorResponse(ctx, fasthttp.StatusInternalServerError, "Internal Server Error", message)
}
