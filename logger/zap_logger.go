package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"

	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

type ZapLoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
	File   string `yaml:"file" json:"file"`
}

func NewDefaultLogger(config *types.LoggerConfig) (types.Logger, error) {
	lConfig := &ZapLoggerConfig{
		Format: FormatConsole,
		Output: OutputStdout,
		Level:  config.Level,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, lConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal logger config")
		}
		if lConfig.Level == "" {
			lConfig.Level = config.Level
		}
	}

	level := zap.NewAtomicLevelAt(ParseLevel(lConfig.Level))

	logger, err := buildZapLogger(lConfig, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	l := &ZapWrapper{Logger: logger, level: &level}

	l.Debug("Logger initialized",
		zap.String("level", level.String()),
		zap.String("format", lConfig.Format),
		zap.String("output", lConfig.Output),
	)

	return l, nil
}

func buildZapLogger(config *ZapLoggerConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapConfig zap.Config
	if config.Format == FormatJSON {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeCaller = ideCallerEncoder
	}

	zapConfig.DisableStacktrace = true
	zapConfig.Level = level

	outputs, err := outputPaths(config)
	if err != nil {
		return nil, err
	}
	zapConfig.OutputPaths = outputs
	zapConfig.ErrorOutputPaths = outputs
	if config.Output != OutputFile && config.Output != OutputStderr {
		zapConfig.ErrorOutputPaths = []string{OutputStderr}
	}

	return zapConfig.Build(zap.AddCaller())
}

func outputPaths(config *ZapLoggerConfig) ([]string, error) {
	switch config.Output {
	case OutputStderr:
		return []string{OutputStderr}, nil
	case OutputFile:
		if err := ensureLogDir(config.File); err != nil {
			return nil, err
		}
		return []string{config.File}, nil
	default:
		return []string{OutputStdout}, nil
	}
}

func ideCallerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("%s:%d", caller.File, caller.Line))
}

// ParseLevel accepts zap level names plus "warning"; anything unknown is info.
func ParseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zapcore.WarnLevel
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

func ensureLogDir(logFile string) error {
	if logFile == "" {
		return types.ErrLogFileIsEmpty
	}

	dir := filepath.Dir(logFile)
	if dir == "." && !strings.ContainsRune(logFile, filepath.Separator) {
		return types.ErrLogFileWrongFormat
	}

	err := os.MkdirAll(dir, 0755)

	return types.WrapError(err, "access denied to log directory")
}

// ZapWrapper adapts *zap.Logger to types.Logger. Calls are expected to come
// through one more wrapper (the Manager), hence the caller skip of two.
type ZapWrapper struct {
	Logger *zap.Logger
	level  *zap.AtomicLevel
}

func NewZapWrapper(logger *zap.Logger) types.Logger {
	return &ZapWrapper{Logger: logger}
}

// NewNop returns a logger that discards everything.
func NewNop() types.Logger {
	return NewZapWrapper(zap.NewNop())
}

func (z *ZapWrapper) caller() *zap.Logger {
	return z.Logger.WithOptions(zap.AddCallerSkip(2))
}

func (z *ZapWrapper) Error(msg string, fields ...zap.Field) {
	z.caller().Error(msg, fields...)
}

func (z *ZapWrapper) Warn(msg string, fields ...zap.Field) {
	z.caller().Warn(msg, fields...)
}

func (z *ZapWrapper) Info(msg string, fields ...zap.Field) {
	z.caller().Info(msg, fields...)
}

func (z *ZapWrapper) Debug(msg string, fields ...zap.Field) {
	z.caller().Debug(msg, fields...)
}

func (z *ZapWrapper) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	z.caller().Log(lvl, msg, fields...)
}

func (z *ZapWrapper) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	if err == nil {
		z.caller().Error(msg, fields...)
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.String("error", err.Error()))
	allFields = append(allFields, fields...)

	if stack := extractStackFromError(err); stack != "" {
		allFields = append(allFields, zap.String("stack", stack))
	}

	z.caller().Error(msg, allFields...)
}

// With returns a child logger that adds fields to every entry. The level
// stays shared with the parent.
func (z *ZapWrapper) With(fields ...zap.Field) types.Logger {
	return &ZapWrapper{Logger: z.Logger.With(fields...), level: z.level}
}

// SetLevel changes the level at runtime. Loggers built around an external
// *zap.Logger keep whatever level their core has.
func (z *ZapWrapper) SetLevel(level string) bool {
	if z.level == nil {
		return false
	}
	z.level.SetLevel(ParseLevel(level))
	return true
}

func (z *ZapWrapper) Sync() error {
	return z.Logger.Sync()
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// extractStackFromError walks the wrap chain and returns the deepest
// pkg/errors stack it finds.
func extractStackFromError(err error) string {
	var found stackTracer

	for current := err; current != nil; {
		if st, ok := current.(stackTracer); ok {
			found = st
		}

		switch wrapped := current.(type) {
		case interface{ Unwrap() error }:
			current = wrapped.Unwrap()
		case interface{ Cause() error }:
			current = wrapped.Cause()
		default:
			current = nil
		}
	}

	if found == nil {
		return ""
	}
	return cleanStack(fmt.Sprintf("%+v", found.StackTrace()))
}

func cleanStack(stack string) string {
	lines := strings.Split(stack, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.Contains(line, "runtime.goexit") ||
			strings.Contains(line, "asm_amd64.s:") ||
			strings.Contains(line, "runtime/panic.go:") {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}
