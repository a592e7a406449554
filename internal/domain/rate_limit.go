package domain

import "time"

// RateLimitRule - лимит запросов на ключ в пределах окна
type RateLimitRule struct {
	Scope  string        `json:"scope"`
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
}

const (
	RateLimitScopeInbound = "inbound"
)

// Key - ключ счетчика для субъекта (обычно IP клиента)
func (r RateLimitRule) Key(subject string) string {
	return r.Scope + ":" + subject
}
