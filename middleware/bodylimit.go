package middleware

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

type BodyLimitMiddleware struct {
	bodyLimitConfig *BodyLimitConfig
	message         string
}

type BodyLimitConfig struct {
	MaxBodySize int64 `json:"max_body_size"`
}

func NewBodyLimitMiddleware(config types.ConfigManager, logger types.Logger) *BodyLimitMiddleware {
	var bodyLimitConfig = &BodyLimitConfig{
		MaxBodySize: 1024 * 1024,
	}

	decodeParams(config.GetConfig().Middlewares.BodyLimit, bodyLimitConfig, logger, "BodyLimit")

	return &BodyLimitMiddleware{
		bodyLimitConfig: bodyLimitConfig,
		message:         fmt.Sprintf("Request body exceeds maximum size of %d bytes", bodyLimitConfig.MaxBodySize),
	}
}

func (bl *BodyLimitMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	if contentLength := ctx.Request.Header.ContentLength(); contentLength > 0 {
		if int64(contentLength) > bl.bodyLimitConfig.MaxBodySize {
			bl.reject(ctx)
			return nil
		}
	}

	// chunked bodies report -1, so measure what was actually read
	if int64(len(ctx.PostBody())) > bl.bodyLimitConfig.MaxBodySize {
		bl.reject(ctx)
		return nil
	}

	return next()
}

func (bl *BodyLimitMiddleware) reject(ctx *types.RequestCtx) {
	utils.CreateErrorResponse(ctx, fasthttp.StatusRequestEntityTooLarge, types.ErrBodyTooLarge.Error(), bl.message)
	ctx.SetConnectionClose()
}
