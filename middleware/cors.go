package middleware

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

type CORSMiddleware struct {
	logger            types.Logger
	corsConfig        *CORSConfig
	allowsAll         bool
	allowedOriginsMap map[string]bool
	allowedMethodsStr string
	allowedHeadersStr string
	maxAgeStr         string
}

// CORSConfig.AllowedOrigins is a ';' separated list; it only applies in
// production, development echoes any origin back.
type CORSConfig struct {
	AllowedOrigins   string   `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

func NewCORSMiddleware(config types.ConfigManager, logger types.Logger) *CORSMiddleware {
	var corsConfig = &CORSConfig{
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	decodeParams(config.GetConfig().Middlewares.CORS, corsConfig, logger, "CORS")

	cm := &CORSMiddleware{
		logger:     logger,
		corsConfig: corsConfig,
		allowsAll:  !config.IsProduction(),
	}

	cm.precompileConfiguration()

	return cm
}

func (c *CORSMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	if origin := ctx.Request.Header.Peek("Origin"); len(origin) > 0 {
		if !c.isOriginAllowed(string(origin)) {
			c.logger.Warn("CORS request blocked",
				zap.ByteString("origin", origin),
				zap.ByteString("method", ctx.Method()),
				zap.String("path", ctx.RawPath()))

			utils.CreateErrorResponse(ctx, fasthttp.StatusForbidden, "CORS policy violation", types.ErrOriginNotAllowed.Error())
			return nil
		}

		c.addCORSHeaders(ctx, origin)
	}

	if ctx.IsOptions() {
		ctx.Response.Header.Set("Access-Control-Max-Age", c.maxAgeStr)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		ctx.ResetBody()
		return nil
	}

	return next()
}

func (c *CORSMiddleware) isOriginAllowed(origin string) bool {
	return c.allowsAll || c.allowedOriginsMap[strings.ToLower(origin)]
}

func (c *CORSMiddleware) addCORSHeaders(ctx *types.RequestCtx, origin []byte) {
	ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", origin)
	ctx.Response.Header.Set("Access-Control-Allow-Headers", c.allowedHeadersStr)
	ctx.Response.Header.Set("Access-Control-Allow-Methods", c.allowedMethodsStr)

	if c.corsConfig.AllowCredentials {
		ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
	}

	ctx.Response.Header.Add("Vary", "Origin")
}

func (c *CORSMiddleware) precompileConfiguration() {
	origins := utils.SplitList(c.corsConfig.AllowedOrigins, ";")

	c.allowedOriginsMap = make(map[string]bool, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			c.allowsAll = true
		}
		c.allowedOriginsMap[strings.ToLower(origin)] = true
	}

	c.allowedMethodsStr = strings.Join(c.corsConfig.AllowedMethods, ", ")
	c.allowedHeadersStr = strings.Join(c.corsConfig.AllowedHeaders, ", ")
	c.maxAgeStr = strconv.Itoa(c.corsConfig.MaxAge)
}
