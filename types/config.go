package types

const (
	DeploymentDevelopment = "development"
	DeploymentProduction  = "production"
)

type ConfigManager interface {
	LifecycleManager
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
	IsProduction() bool
}

type ServiceConfig struct {
	Name           string             `yaml:"name" json:"name" validate:"required"`
	Version        string             `yaml:"version" json:"version" validate:"required"`
	DeploymentMode string             `yaml:"deployment_mode" json:"deployment_mode" validate:"required"`
	Server         *ServerConfig      `yaml:"server" json:"server" validate:"required"`
	Logger         *LoggerConfig      `yaml:"logger" json:"logger" validate:"required"`
	Metrics        *MetricsConfig     `yaml:"metrics" json:"metrics"`
	Health         *HealthConfig      `yaml:"health" json:"health"`
	Middlewares    *MiddlewaresConfig `yaml:"middlewares" json:"middlewares"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http" validate:"required"`
	TLS  *TLSConfig  `yaml:"tls" json:"tls"`
}

type HTTPConfig struct {
	Host               string `yaml:"host" json:"host" validate:"required"`
	Port               int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout        int    `yaml:"read_timeout" json:"read_timeout" validate:"min=0"`
	WriteTimeout       int    `yaml:"write_timeout" json:"write_timeout" validate:"min=0"`
	IdleTimeout        int    `yaml:"idle_timeout" json:"idle_timeout" validate:"min=0"`
	ShutdownTimeout    int    `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"min=0"`
	MaxRequestBodySize int    `yaml:"max_request_body_size" json:"max_request_body_size" validate:"min=0"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file,omitempty" json:"cert_file,omitempty" validate:"required_if=Enabled true"`
	KeyFile  string `yaml:"key_file,omitempty" json:"key_file,omitempty" validate:"required_if=Enabled true"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type MetricsConfig struct {
	Enabled         bool              `yaml:"enabled" json:"enabled"`
	Namespace       string            `yaml:"namespace" json:"namespace" validate:"required_if=Enabled true"`
	Subsystem       string            `yaml:"subsystem" json:"subsystem"`
	Path            string            `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	Labels          map[string]string `yaml:"labels" json:"labels"`
	EnableGoMetrics bool              `yaml:"enable_go_metrics" json:"enable_go_metrics"`
}

type HealthConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Path         string `yaml:"path" json:"path"`
	VersionPath  string `yaml:"version_path" json:"version_path"`
	CheckTimeout int    `yaml:"check_timeout" json:"check_timeout" validate:"min=0"`
}

type MiddlewaresConfig struct {
	Recovery    *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	Logging     *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	CORS        *MiddlewareItemConfig `yaml:"cors" json:"cors"`
	BodyLimit   *MiddlewareItemConfig `yaml:"body_limit" json:"body_limit"`
	Compression *MiddlewareItemConfig `yaml:"compression" json:"compression"`
	RateLimit   *MiddlewareItemConfig `yaml:"rate_limit" json:"rate_limit"`
	Static      *MiddlewareItemConfig `yaml:"static" json:"static"`
	Metrics     *MiddlewareItemConfig `yaml:"metrics" json:"metrics"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}

func (m *MiddlewareItemConfig) IsEnabled() bool {
	return m != nil && m.Enabled
}
