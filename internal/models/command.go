package models

// Command is an inbound action request on the command topic.
// Fields other than ActionID are informational and carried as text for
// logging; unknown fields are ignored.
type Command struct {
	ActionID  string `json:"action_id" validate:"required"`
	IssuedBy  string `json:"issued_by,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
