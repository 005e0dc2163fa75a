package models

import (
	"time"

	"github.com/google/uuid"
)

// ExternalIntegration is a configured connection to a third party system
type ExternalIntegration struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	Config    map[string]interface{} `json:"config"`
	IsActive  bool                   `json:"is_active"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// IntegrationUpdate holds the optional fields of an integration update
type IntegrationUpdate struct {
	Name     *string                `json:"name"`
	Type     *string                `json:"type"`
	Config   map[string]interface{} `json:"config"`
	IsActive *bool                  `json:"is_active"`
}

// IntegrationLog is an event recorded for an integration
type IntegrationLog struct {
	ID            int64     `json:"id"`
	IntegrationID uuid.UUID `json:"integration_id"`
	EventType     string    `json:"event_type"`
	Message       *string   `json:"message"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// WarehouseConfig is the single warehouse provider configuration
type WarehouseConfig struct {
	ID        int64                  `json:"id"`
	Provider  string                 `json:"provider"`
	Options   map[string]interface{} `json:"options"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ToolOrder is an order placed with the warehouse provider
type ToolOrder struct {
	ID         int64         `json:"id"`
	ExternalID *string       `json:"external_id"`
	Items      []interface{} `json:"items"`
	Status     string        `json:"status"`
	OrderedAt  time.Time     `json:"ordered_at"`
}

// ToolMapping maps a warehouse tool id onto a local tool
type ToolMapping struct {
	ID             int64  `json:"id"`
	ExternalToolID string `json:"external_tool_id"`
	InternalToolID int64  `json:"internal_tool_id"`
}
