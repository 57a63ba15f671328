package types

type LifecycleManager interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// Component is a named lifecycle unit started and stopped by the service.
type Component struct {
	Name    string
	Manager LifecycleManager
}
