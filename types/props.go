package types

const (
	PropRequestID     = "req.id"
	PropParams        = "req.params"
	PropURL           = "req.url"
	PropQuery         = "req.query"
	PropForm          = "req.form"
	PropBody          = "req.body"
	PropCorrelationID = "log.correlation_id"
)

// Props is the per-request property bag. It is owned by a single request
// and needs no locking.
type Props struct {
	values map[string]interface{}
}

func NewProps() *Props {
	return &Props{values: make(map[string]interface{}, 8)}
}

func (p *Props) Set(key string, value interface{}) {
	p.values[key] = value
}

func (p *Props) Get(key string) (interface{}, bool) {
	value, ok := p.values[key]
	return value, ok
}

func (p *Props) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p *Props) Delete(key string) {
	delete(p.values, key)
}

func (p *Props) GetString(key string) string {
	if value, ok := p.values[key].(string); ok {
		return value
	}
	return ""
}

func (p *Props) RequestID() uint64 {
	if id, ok := p.values[PropRequestID].(uint64); ok {
		return id
	}
	return 0
}

func (p *Props) SetRequestID(id uint64) {
	p.values[PropRequestID] = id
}

// Params returns nil unless parametrized matching matched a route.
func (p *Props) Params() *Params {
	if params, ok := p.values[PropParams].(*Params); ok {
		return params
	}
	return nil
}

func (p *Props) SetParams(params *Params) {
	p.values[PropParams] = params
}

// Params keeps path parameters in the order they were bound. Setting a name
// twice keeps its first position and the last value.
type Params struct {
	names  []string
	values map[string]string
}

func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

func (p *Params) Set(name, value string) {
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

func (p *Params) Get(name string) string {
	return p.values[name]
}

func (p *Params) Lookup(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok
}

func (p *Params) Names() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

func (p *Params) Len() int {
	return len(p.names)
}

func (p *Params) Map() map[string]string {
	result := make(map[string]string, len(p.values))
	for k, v := range p.values {
		result[k] = v
	}
	return result
}
