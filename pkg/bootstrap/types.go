// Package bootstrap loads seed data and applies it through the catalog.
package bootstrap

import "github.com/wkc-labs/wkc-server/pkg/catalog"

// SeedOrder is an order entry in a seed file.
type SeedOrder struct {
	UserID       string         `json:"user_id"`
	ChatMessage  string         `json:"chat_message"`
	OrderDetails map[string]any `json:"order_details,omitempty"`
	Status       string         `json:"status,omitempty"`
}

// SeedFile is the root of a seed file.
type SeedFile struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description,omitempty"`
	Products    []catalog.ProductInput `json:"products"`
	Orders      []SeedOrder            `json:"orders,omitempty"`
}

// ApplyResult counts what Apply created. Existing counts entries that were
// already in the store.
type ApplyResult struct {
	Products int      `json:"products"`
	Orders   int      `json:"orders"`
	Existing int      `json:"existing"`
	Errors   []string `json:"errors,omitempty"`
}
