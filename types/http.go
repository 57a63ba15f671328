package types

type HTTPServer interface {
	LifecycleManager
	Addr() string
}

type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Middlewares int    `json:"middlewares"`
}
