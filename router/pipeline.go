package router

import (
	"github.com/saiset-co/sai-router/types"
)

// Pipeline runs an ordered middleware list one element per Next call.
// The index starts before the first element; advancing past the end or
// after the response was sent does nothing.
type Pipeline struct {
	ctx         *types.RequestCtx
	middlewares []types.Middleware
	index       int
}

func NewPipeline(ctx *types.RequestCtx, middlewares []types.Middleware) *Pipeline {
	return &Pipeline{
		ctx:         ctx,
		middlewares: middlewares,
		index:       -1,
	}
}

func (p *Pipeline) Next() error {
	p.index++

	if p.index >= len(p.middlewares) || p.ctx.IsSent() {
		return nil
	}

	return p.middlewares[p.index].Handle(p.ctx, p.Next)
}

// Run builds a pipeline and advances it once.
func Run(ctx *types.RequestCtx, middlewares []types.Middleware) error {
	return NewPipeline(ctx, middlewares).Next()
}
