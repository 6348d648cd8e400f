package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/docgrid/docgrid/constants"
)

// Row is one document's extraction record inside a table: the uploaded file,
// its lifecycle status, and the extracted field values once committed.
type Row struct {
	ID          uuid.UUID           `json:"id"`
	TableID     uuid.UUID           `json:"table_id"`
	FilePath    string              `json:"file_path"` // object path in the document bucket
	FileName    string              `json:"file_name"`
	Status      constants.RowStatus `json:"status"`
	Data        map[string]any      `json:"data"`
	Error       *string             `json:"error,omitempty"`
	RawResponse *string             `json:"-"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// StaleExtracting reports whether the row sits in "extracting" past the
// staleness window relative to now.
func (r *Row) StaleExtracting(now time.Time) bool {
	return r.Status == constants.RowStatusExtracting &&
		now.Sub(r.UpdatedAt) > constants.StaleExtractingAfter
}
