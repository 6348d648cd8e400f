package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docgrid/docgrid/internal/llm"
)

func TestValidateAgainstSchema(t *testing.T) {
	t.Parallel()

	schema := llm.BuildColumnsJSONSchema([]llm.ColumnSpec{
		{Key: "total", Description: "grand total"},
		{Key: "vendor", Description: "vendor name"},
	})

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"all strings", `{"total": "42.50", "vendor": "Acme"}`, false},
		{"number value", `{"total": 42.5, "vendor": "Acme"}`, false},
		{"null value", `{"total": null, "vendor": "Acme"}`, false},
		{"missing key", `{"total": "42.50"}`, true},
		{"extra key", `{"total": "1", "vendor": "A", "made_up": true}`, true},
		{"boolean value", `{"total": true, "vendor": "Acme"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := llm.ValidateAgainstSchema(schema, []byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "does not match schema")
			} else {
				require.NoError(t, err)
			}
		})
	}
}
