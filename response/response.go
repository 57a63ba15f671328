package response

import (
	"bytes"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeXML  = "application/xml"
	ContentTypeText = "text/plain; charset=utf-8"
)

var (
	doctypeHTML = []byte("<!doctype html")
	openHTML    = []byte("<html")
)

// DetectContentType guesses the type of a textual body from its first
// non-blank bytes.
func DetectContentType(data []byte) string {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return ContentTypeText
	}

	switch {
	case (trimmed[0] == '{' || trimmed[0] == '[') && utils.ValidJSON(trimmed):
		return ContentTypeJSON
	case hasPrefixFold(trimmed, doctypeHTML) || hasPrefixFold(trimmed, openHTML):
		return ContentTypeHTML
	case trimmed[0] == '<':
		return ContentTypeXML
	default:
		return ContentTypeText
	}
}

func hasPrefixFold(data, prefix []byte) bool {
	return len(data) >= len(prefix) && bytes.EqualFold(data[:len(prefix)], prefix)
}

// Send writes a complete response. An empty contentType is detected from
// the body.
func Send(ctx *types.RequestCtx, status int, body []byte, contentType string) {
	if contentType == "" {
		contentType = DetectContentType(body)
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType(contentType)
	ctx.SetBody(body)
}

func SendText(ctx *types.RequestCtx, status int, text string) {
	Send(ctx, status, []byte(text), "")
}

func SendJSON(ctx *types.RequestCtx, status int, value interface{}) error {
	body, err := utils.Marshal(value)
	if err != nil {
		return types.WrapError(err, "failed to marshal response")
	}

	Send(ctx, status, body, ContentTypeJSON)
	return nil
}

func SendOK(ctx *types.RequestCtx, content string) {
	SendText(ctx, fasthttp.StatusOK, content)
}

func SendNotFound(ctx *types.RequestCtx, content string) {
	SendText(ctx, fasthttp.StatusNotFound, content)
}

// SendError writes the shared JSON error body with the standard reason
// phrase of status.
func SendError(ctx *types.RequestCtx, status int, message string) {
	utils.CreateErrorResponse(ctx, status, fasthttp.StatusMessage(status), message)
}
