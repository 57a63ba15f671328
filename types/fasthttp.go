package types

import (
	"github.com/valyala/fasthttp"
)

// StatusNotSent is the reserved status of a response nobody has answered yet.
// Collaborators must never use it for a real response.
const StatusNotSent = 777

// RequestCtx carries one request through a chain: the fasthttp request and
// response plus the per-request property bag.
type RequestCtx struct {
	*fasthttp.RequestCtx
	Props     *Props
	finalized bool
}

func NewRequestCtx(ctx *fasthttp.RequestCtx) *RequestCtx {
	return &RequestCtx{
		RequestCtx: ctx,
		Props:      NewProps(),
	}
}

func (c *RequestCtx) MarkUnsent() {
	c.SetStatusCode(StatusNotSent)
}

func (c *RequestCtx) IsSent() bool {
	return c.Response.StatusCode() != StatusNotSent
}

// Finalize forces 501 on a response that is still unsent and closes it.
// Only the first call has an effect; it reports whether this call closed it.
func (c *RequestCtx) Finalize() bool {
	if c.finalized {
		return false
	}

	if !c.IsSent() {
		c.SetStatusCode(fasthttp.StatusNotImplemented)
	}

	c.finalized = true
	return true
}

func (c *RequestCtx) Finalized() bool {
	return c.finalized
}

// RawPath is the request path as sent by the client, without the query
// string and without percent-decoding.
func (c *RequestCtx) RawPath() string {
	path := c.URI().PathOriginal()
	if len(path) == 0 {
		return "/"
	}
	return string(path)
}

func (c *RequestCtx) MethodString() string {
	return string(c.Method())
}
