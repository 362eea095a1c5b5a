package accesslog

import "time"

type AccessType string

const (
	AccessTypeRead  AccessType = "read"
	AccessTypeWrite AccessType = "write"
	AccessTypeDeny  AccessType = "deny"
)

// AccessLogEntry is one line of a user's access log.
type AccessLogEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	User       string     `json:"user"`
	AccessType AccessType `json:"access_type"`
	Method     string     `json:"method"`
	Route      string     `json:"route"`
	Path       string     `json:"path"`
	Target     string     `json:"target,omitempty"`
	StatusCode int        `json:"status_code"`
	Bytes      int        `json:"bytes"`
	IP         string     `json:"ip"`
	UserAgent  string     `json:"user_agent"`
	Allowed    bool       `json:"allowed"`
}
