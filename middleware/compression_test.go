package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-router/types"
)

func TestCompression_Negotiate(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                   "",
		"identity":           "",
		"gzip":               AlgorithmGzip,
		"gzip, deflate, br":  AlgorithmBrotli,
		"br;q=0, gzip":       AlgorithmGzip,
		"deflate, GZIP;q=.5": AlgorithmGzip,
	}

	for header, expected := range tests {
		assert.Equal(t, expected, negotiate([]byte(header)), header)
	}
}

func TestCompression_Body(t *testing.T) {
	t.Parallel()

	payload := `{"items":[` + strings.Repeat(`{"name":"widget","price":10},`, 100) + `{}]}`

	decoders := map[string]func(io.Reader) (io.Reader, error){
		AlgorithmBrotli: func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
		AlgorithmGzip:   func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	}

	for algorithm, decode := range decoders {
		algorithm, decode := algorithm, decode
		t.Run(algorithm, func(t *testing.T) {
			t.Parallel()

			log, _ := observedLogger()
			ctx := newCtx(request{uri: "/items", headers: map[string]string{"Accept-Encoding": algorithm}})

			err := NewCompressionMiddleware(testConfig(nil), log).Handle(ctx, func() error {
				ctx.SetStatusCode(200)
				ctx.SetContentType("application/json; charset=utf-8")
				ctx.SetBodyString(payload)
				return nil
			})
			require.NoError(t, err)

			assert.Equal(t, algorithm, string(ctx.Response.Header.Peek("Content-Encoding")))
			assert.Contains(t, string(ctx.Response.Header.Peek("Vary")), "Accept-Encoding")

			reader, err := decode(bytes.NewReader(ctx.Response.Body()))
			require.NoError(t, err)
			decoded, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, payload, string(decoded))
		})
	}
}

func TestCompression_Skips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		unsent      bool
	}{
		{name: "below threshold", contentType: "application/json", body: `{"a":1}`},
		{name: "binary type", contentType: "image/png", body: strings.Repeat("x", 4096)},
		{name: "nothing sent", unsent: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			log, _ := observedLogger()
			ctx := newCtx(request{uri: "/items", headers: map[string]string{"Accept-Encoding": "gzip"}})

			err := NewCompressionMiddleware(testConfig(nil), log).Handle(ctx, func() error {
				if !tt.unsent {
					ctx.SetStatusCode(200)
					ctx.SetContentType(tt.contentType)
					ctx.SetBodyString(tt.body)
				}
				return nil
			})
			require.NoError(t, err)

			assert.Empty(t, ctx.Response.Header.Peek("Content-Encoding"))
			assert.Equal(t, tt.body, string(ctx.Response.Body()))
			if tt.unsent {
				assert.Equal(t, types.StatusNotSent, ctx.Response.StatusCode())
			}
		})
	}
}
