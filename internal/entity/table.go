package entity

import (
	"time"

	"github.com/google/uuid"
)

// Table is a user-owned grid of documents sharing one extraction schema.
type Table struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column is one field of a table's extraction schema: a stable key plus a
// natural-language description of what to pull out of each document.
type Column struct {
	ID          uuid.UUID `json:"id"`
	TableID     uuid.UUID `json:"table_id"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	Position    int       `json:"position"`
}
