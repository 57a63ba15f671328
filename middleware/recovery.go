package middleware

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

const productionErrorMessage = "An unexpected error occurred"

type RecoveryMiddleware struct {
	logger         types.Logger
	metrics        types.MetricsManager
	recoveryConfig *RecoveryConfig
	production     bool
}

type RecoveryConfig struct {
	StackTrace bool `json:"stack_trace"`
}

// NewRecoveryMiddleware turns panics and errors raised further down the
// chain into a 500 JSON response. In production the error text stays in the
// log and the client only gets a generic message.
func NewRecoveryMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *RecoveryMiddleware {
	var recoveryConfig = &RecoveryConfig{
		StackTrace: true,
	}

	decodeParams(config.GetConfig().Middlewares.Recovery, recoveryConfig, logger, "Recovery")

	return &RecoveryMiddleware{
		logger:         logger,
		metrics:        metrics,
		recoveryConfig: recoveryConfig,
		production:     config.IsProduction(),
	}
}

func (r *RecoveryMiddleware) Handle(ctx *types.RequestCtx, next types.Next) (err error) {
	defer func() {
		kind := "error"
		if rec := recover(); rec != nil {
			err = panicError(rec)
			kind = "panic"
		}

		if err == nil {
			return
		}

		r.logFailure(ctx, kind, err)
		r.respond(ctx, err)
		err = nil
	}()

	return next()
}

func (r *RecoveryMiddleware) logFailure(ctx *types.RequestCtx, kind string, err error) {
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.Uint64("request_id", ctx.Props.RequestID()),
		zap.ByteString("method", ctx.Method()),
		zap.String("path", ctx.RawPath()),
		zap.String("remote_addr", ctx.RemoteIP().String()),
	}

	if userAgent := ctx.UserAgent(); len(userAgent) > 0 {
		fields = append(fields, zap.ByteString("user_agent", userAgent))
	}

	if r.recoveryConfig.StackTrace {
		r.logger.ErrorWithErrStack("Request failed", err, fields...)
	} else {
		r.logger.Error("Request failed", append(fields, zap.Error(err))...)
	}

	if r.metrics != nil {
		r.metrics.Counter("recovered_errors_total", map[string]string{"kind": kind}).Inc()
	}
}

func (r *RecoveryMiddleware) respond(ctx *types.RequestCtx, err error) {
	if ctx.Finalized() {
		return
	}

	message := productionErrorMessage
	if !r.production {
		message = err.Error()
	}

	utils.CreateInternalErrorResponse(ctx, message)
}

func panicError(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return errors.WithStack(fmt.Errorf("%w: %w", types.ErrRequestPanic, err))
	}
	return errors.WithStack(types.Errorf(types.ErrRequestPanic, "%v", rec))
}
