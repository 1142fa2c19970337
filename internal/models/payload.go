package models

import "fmt"

// APIVersion is the protocol version tag every discovery payload carries.
const APIVersion = "v1"

// Status is the liveness state announced in a discovery payload.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// DiscoveryPayload is the self-describing document published on every heartbeat tick.
type DiscoveryPayload struct {
	APIVersion   string  `json:"api_version" validate:"required,eq=v1"`
	AuthToken    string  `json:"auth_token" validate:"required"`
	ID           string  `json:"id" validate:"required"`
	Name         string  `json:"name"`
	Group        string  `json:"group"`
	Status       Status  `json:"status" validate:"required,oneof=online offline"`
	TTL          int     `json:"ttl" validate:"gt=0"`
	MarkdownDocs string  `json:"markdown_docs"`
	Widgets      Widgets `json:"widgets"`
}

// DiscoveryTopic returns the topic a service announces itself on.
func DiscoveryTopic(id string) string {
	return fmt.Sprintf("synapse/v1/discovery/%s", id)
}

// CommandTopic returns the topic a hub sends action requests to.
func CommandTopic(id string) string {
	return fmt.Sprintf("synapse/v1/command/%s", id)
}
