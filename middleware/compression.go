package middleware

import (
	"bytes"
	"compress/gzip"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/types"
)

const (
	AlgorithmGzip       = "gzip"
	AlgorithmBrotli     = "br"
	DefaultLevel        = 6
	DefaultThreshold    = 1024
	MinCompressionRatio = 0.05
)

type CompressionMiddleware struct {
	logger            types.Logger
	compressionConfig *CompressionConfig
	gzipWriterPool    sync.Pool
	brotliWriterPool  sync.Pool
	bufferPool        sync.Pool
}

type CompressionConfig struct {
	Level        int      `json:"level"`
	Threshold    int      `json:"threshold"`
	AllowedTypes []string `json:"allowed_types"`
}

func NewCompressionMiddleware(config types.ConfigManager, logger types.Logger) *CompressionMiddleware {
	compressionConfig := &CompressionConfig{
		Level:     DefaultLevel,
		Threshold: DefaultThreshold,
		AllowedTypes: []string{
			"application/json",
			"application/xml",
			"application/javascript",
			"text/*",
		},
	}

	decodeParams(config.GetConfig().Middlewares.Compression, compressionConfig, logger, "Compression")

	if compressionConfig.Level < gzip.HuffmanOnly || compressionConfig.Level > gzip.BestCompression {
		logger.Warn("Invalid compression level, using default", zap.Int("level", compressionConfig.Level))
		compressionConfig.Level = DefaultLevel
	}

	cm := &CompressionMiddleware{
		logger:            logger,
		compressionConfig: compressionConfig,
	}

	cm.initializePools()

	return cm
}

// Handle compresses what the rest of the chain produced, preferring br over
// gzip when the client accepts both.
func (c *CompressionMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	algorithm := negotiate(ctx.Request.Header.Peek("Accept-Encoding"))

	if err := next(); err != nil || algorithm == "" {
		return err
	}

	if !ctx.IsSent() || ctx.IsHead() || len(ctx.Response.Header.Peek("Content-Encoding")) > 0 {
		return nil
	}

	if !c.shouldCompress(ctx.Response.Header.ContentType()) {
		return nil
	}

	c.compressResponse(ctx, algorithm)
	return nil
}

func negotiate(acceptEncoding []byte) string {
	if len(acceptEncoding) == 0 {
		return ""
	}

	var hasGzip bool
	for _, part := range strings.Split(string(acceptEncoding), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.ReplaceAll(params, " ", "") == "q=0" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(coding)) {
		case AlgorithmBrotli:
			return AlgorithmBrotli
		case AlgorithmGzip:
			hasGzip = true
		}
	}

	if hasGzip {
		return AlgorithmGzip
	}
	return ""
}

func (c *CompressionMiddleware) shouldCompress(contentType []byte) bool {
	if len(contentType) == 0 {
		return false
	}

	ctStr := string(contentType)
	if semicolon := strings.Index(ctStr, ";"); semicolon != -1 {
		ctStr = ctStr[:semicolon]
	}
	ctStr = strings.TrimSpace(strings.ToLower(ctStr))

	for _, allowedType := range c.compressionConfig.AllowedTypes {
		if allowedType == ctStr {
			return true
		}
		if strings.HasSuffix(allowedType, "*") && strings.HasPrefix(ctStr, strings.TrimSuffix(allowedType, "*")) {
			return true
		}
	}
	return false
}

func (c *CompressionMiddleware) compressResponse(ctx *types.RequestCtx, algorithm string) {
	body := ctx.Response.Body()
	originalSize := len(body)

	if originalSize < c.compressionConfig.Threshold {
		return
	}

	compressed, err := c.compress(algorithm, body)
	if err != nil {
		c.logger.Warn("Compression failed", zap.String("algorithm", algorithm), zap.Error(err))
		return
	}

	if 1.0-float64(len(compressed))/float64(originalSize) < MinCompressionRatio {
		return
	}

	ctx.Response.SetBody(compressed)
	ctx.Response.Header.SetContentEncoding(algorithm)
	ctx.Response.Header.SetContentLength(len(compressed))
	ctx.Response.Header.Add("Vary", "Accept-Encoding")
}

func (c *CompressionMiddleware) compress(algorithm string, data []byte) ([]byte, error) {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	switch algorithm {
	case AlgorithmBrotli:
		writer := c.brotliWriterPool.Get().(*brotli.Writer)
		writer.Reset(buf)
		defer c.brotliWriterPool.Put(writer)

		if _, err := writer.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	default:
		writer := c.gzipWriterPool.Get().(*gzip.Writer)
		writer.Reset(buf)
		defer c.gzipWriterPool.Put(writer)

		if _, err := writer.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (c *CompressionMiddleware) initializePools() {
	c.gzipWriterPool = sync.Pool{
		New: func() interface{} {
			writer, _ := gzip.NewWriterLevel(nil, c.compressionConfig.Level)
			return writer
		},
	}

	c.brotliWriterPool = sync.Pool{
		New: func() interface{} {
			return brotli.NewWriterLevel(nil, c.compressionConfig.Level)
		},
	}

	c.bufferPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	}
}
