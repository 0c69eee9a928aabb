// Package events defines catalog change events and the publishers that emit them.
package events

// Change actions.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionDeleted       = "deleted"
	ActionStatusChanged = "status_changed"
	ActionModified      = "modified"
)

// ChangeEvent is emitted after a product or order document is written.
type ChangeEvent struct {
	Collection    string   `json:"collection"`
	Action        string   `json:"action"`
	ID            string   `json:"id"`
	UserID        string   `json:"userId,omitempty"`
	ChangedFields []string `json:"changedFields,omitempty"`
	Status        string   `json:"status,omitempty"`
	Timestamp     string   `json:"timestamp"`
}
