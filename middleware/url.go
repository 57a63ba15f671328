package middleware

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

// URLParts is the request URL split into its components, published under
// types.PropURL by ParseURL.
type URLParts struct {
	Scheme   string `json:"scheme"`
	Auth     string `json:"auth"`
	User     string `json:"user"`
	Pass     string `json:"pass"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Path     string `json:"path"`
	Query    string `json:"query"`
	Fragment string `json:"fragment"`
}

func ParseURL() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		ctx.Props.Set(types.PropURL, SplitURI(ctx.URI()))
		return next()
	})
}

// ParseQueryString publishes the query arguments under types.PropQuery. It
// reuses the query split by ParseURL when that ran first.
func ParseQueryString() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		query := string(ctx.URI().QueryString())
		if value, ok := ctx.Props.Get(types.PropURL); ok {
			if parts, ok := value.(*URLParts); ok {
				query = parts.Query
			}
		}

		ctx.Props.Set(types.PropQuery, ParseFormData(strings.TrimPrefix(query, "?")))
		return next()
	})
}

func SplitURI(uri *fasthttp.URI) *URLParts {
	parts := &URLParts{
		Scheme:   string(uri.Scheme()),
		User:     string(uri.Username()),
		Pass:     string(uri.Password()),
		Path:     string(uri.PathOriginal()),
		Query:    string(uri.QueryString()),
		Fragment: string(uri.Hash()),
	}

	hostPort := string(uri.Host())
	parts.Host = hostPort
	if host, port, err := net.SplitHostPort(hostPort); err == nil {
		parts.Host, parts.Port = host, port
	}

	parts.Auth = hostPort
	if parts.User != "" {
		credentials := parts.User
		if parts.Pass != "" {
			credentials += ":" + parts.Pass
		}
		parts.Auth = credentials + "@" + hostPort
	}

	return parts
}

// ParseFormData decodes an urlencoded string. Repeated keys are joined with
// a comma in arrival order.
func ParseFormData(text string) map[string]string {
	var args fasthttp.Args
	args.Parse(text)

	values := make(map[string]string, args.Len())
	args.VisitAll(func(key, value []byte) {
		name := string(key)
		if previous, exists := values[name]; exists {
			values[name] = previous + "," + string(value)
			return
		}
		values[name] = string(value)
	})

	return values
}
