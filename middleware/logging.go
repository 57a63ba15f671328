package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saiset-co/sai-router/types"
)

const HeaderRequestID = "X-Request-Id"

type LoggingMiddleware struct {
	logger        types.Logger
	loggingConfig *LoggingConfig
	level         zapcore.Level
}

type LoggingConfig struct {
	LogLevel   string `json:"log_level"`
	LogHeaders bool   `json:"log_headers"`
}

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
	"set-cookie":    true,
}

func NewLoggingMiddleware(config types.ConfigManager, logger types.Logger) *LoggingMiddleware {
	var loggingConfig = &LoggingConfig{
		LogLevel: "info",
	}

	decodeParams(config.GetConfig().Middlewares.Logging, loggingConfig, logger, "Logging")

	level, err := zapcore.ParseLevel(loggingConfig.LogLevel)
	if err != nil {
		logger.Warn("Unknown logging middleware level, using info", zap.String("level", loggingConfig.LogLevel))
		level = zapcore.InfoLevel
	}

	return &LoggingMiddleware{
		logger:        logger,
		loggingConfig: loggingConfig,
		level:         level,
	}
}

// Handle tags the exchange with a correlation id and writes one record for it
// once the rest of the chain has returned, panics included.
func (l *LoggingMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	start := time.Now()

	correlationID := l.correlationID(ctx)
	ctx.Props.Set(types.PropCorrelationID, correlationID)
	ctx.Response.Header.Set(HeaderRequestID, correlationID)

	defer l.logExchange(ctx, correlationID, start)

	return next()
}

func (l *LoggingMiddleware) correlationID(ctx *types.RequestCtx) string {
	if requestID := ctx.Request.Header.Peek(HeaderRequestID); len(requestID) > 0 {
		return string(requestID)
	}

	return strconv.FormatUint(ctx.Props.RequestID(), 10) + "-" + uuid.NewString()[:8]
}

func (l *LoggingMiddleware) logExchange(ctx *types.RequestCtx, correlationID string, start time.Time) {
	status := ctx.Response.StatusCode()

	fields := []zap.Field{
		zap.Time("timestamp", start.UTC()),
		zap.String("request_id", correlationID),
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("url", ctx.RequestURI()),
		zap.String("remote", remoteAddr(ctx)),
		zap.Int("status", status),
		zap.ByteString("content_type", ctx.Response.Header.ContentType()),
		zap.Int("content_length", len(ctx.Response.Body())),
		zap.Duration("duration", time.Since(start)),
	}

	if l.loggingConfig.LogHeaders {
		fields = append(fields, zap.Any("headers", sanitizeHeaders(ctx)))
	}

	switch {
	case status >= 500:
		l.logger.Error("Request completed", fields...)
	case status >= 400:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logger.Log(l.level, "Request completed", fields...)
	}
}

func sanitizeHeaders(ctx *types.RequestCtx) map[string]string {
	headers := make(map[string]string)

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if sensitiveHeaders[strings.ToLower(name)] {
			headers[name] = "[REDACTED]"
			return
		}
		headers[name] = string(value)
	})

	return headers
}

func remoteAddr(ctx *types.RequestCtx) string {
	if realIP := ctx.Request.Header.Peek("X-Real-IP"); len(realIP) > 0 {
		return string(realIP)
	}

	if forwarded := string(ctx.Request.Header.Peek("X-Forwarded-For")); forwarded != "" {
		if comma := strings.Index(forwarded, ","); comma > 0 {
			return strings.TrimSpace(forwarded[:comma])
		}
		return strings.TrimSpace(forwarded)
	}

	return ctx.RemoteIP().String()
}
