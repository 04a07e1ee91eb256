package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action classifies what an audit record describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLogin  Action = "login"
	ActionError  Action = "error"
)

// Record is one audit log row. Every mutating operation against the
// directory, the DNS/DHCP stores or the IPAM database writes one.
type Record struct {
	ID           uuid.UUID      `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceName string         `json:"resource_name,omitempty"`
	Actor        string         `json:"actor"`
	ActorIP      string         `json:"actor_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Status       string         `json:"status"`
	Details      map[string]any `json:"details,omitempty"`
}

// Filters narrows an audit listing.
type Filters struct {
	From         time.Time
	To           time.Time
	Actor        string
	Action       string
	ResourceType string
	Status       string
	Page         int
	PageSize     int
}

// Stats is the aggregate overview of the audit log.
type Stats struct {
	Total      int64            `json:"total"`
	ByAction   map[string]int64 `json:"by_action"`
	ByResource map[string]int64 `json:"by_resource"`
	ByStatus   map[string]int64 `json:"by_status"`
	Failures   int64            `json:"failures"`
}
