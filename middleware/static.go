package middleware

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/types"
)

type StaticMiddleware struct {
	logger       types.Logger
	staticConfig *StaticConfig
	root         string
	serve        fasthttp.RequestHandler
}

type StaticConfig struct {
	Dir        string   `json:"dir"`
	IndexNames []string `json:"index_names"`
}

func NewStaticMiddleware(config types.ConfigManager, logger types.Logger) (*StaticMiddleware, error) {
	var staticConfig = &StaticConfig{
		Dir:        "public",
		IndexNames: []string{"index.html"},
	}

	decodeParams(config.GetConfig().Middlewares.Static, staticConfig, logger, "Static")

	return NewStaticDir(staticConfig, logger)
}

// NewStaticDir serves files under staticConfig.Dir. The directory must exist.
func NewStaticDir(staticConfig *StaticConfig, logger types.Logger) (*StaticMiddleware, error) {
	root, err := filepath.Abs(staticConfig.Dir)
	if err != nil {
		return nil, types.WrapError(err, "failed to resolve static dir")
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, types.Errorf(types.ErrStaticDirNotExists, "dir: %s", root)
	}

	fs := &fasthttp.FS{
		Root:            root,
		IndexNames:      staticConfig.IndexNames,
		AcceptByteRange: true,
	}

	logger.Debug("Static files enabled", zap.String("root", root))

	return &StaticMiddleware{
		logger:       logger,
		staticConfig: staticConfig,
		root:         root,
		serve:        fs.NewRequestHandler(),
	}, nil
}

// Handle serves GET and HEAD requests that resolve to a file under the root
// and continues the chain for everything else.
func (s *StaticMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	if !ctx.IsGet() && !ctx.IsHead() {
		return next()
	}

	if !s.exists(string(ctx.Path())) {
		return next()
	}

	s.serve(ctx.RequestCtx)
	return nil
}

func (s *StaticMiddleware) exists(urlPath string) bool {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	target := filepath.Join(s.root, filepath.FromSlash(clean))

	if target != s.root && !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return false
	}

	info, err := os.Stat(target)
	if err != nil {
		return false
	}

	if info.Mode().IsRegular() {
		return true
	}

	if info.IsDir() {
		for _, index := range s.staticConfig.IndexNames {
			if indexInfo, err := os.Stat(filepath.Join(target, index)); err == nil && indexInfo.Mode().IsRegular() {
				return true
			}
		}
	}

	return false
}
