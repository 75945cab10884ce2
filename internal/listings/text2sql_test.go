package listings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeGeneratedSQL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain select",
			raw:  "SELECT id FROM listings LIMIT 20",
			want: "SELECT id FROM listings LIMIT 20",
		},
		{
			name: "markdown fences stripped",
			raw:  "```sql\nSELECT id FROM listings LIMIT 20\n```",
			want: "SELECT id FROM listings LIMIT 20",
		},
		{
			name: "trailing semicolon stripped",
			raw:  "SELECT id FROM listings;",
			want: "SELECT id FROM listings",
		},
		{
			name:    "rejects non-select",
			raw:     "DELETE FROM listings",
			wantErr: true,
		},
		{
			name:    "rejects multiple statements",
			raw:     "SELECT id FROM listings; DROP TABLE listings",
			wantErr: true,
		},
		{
			name:    "rejects other tables",
			raw:     "SELECT id FROM leads",
			wantErr: true,
		},
		{
			name:    "rejects embedded write keyword",
			raw:     "SELECT id FROM listings WHERE id IN (SELECT id FROM listings) UNION SELECT 1 -- update",
			wantErr: true,
		},
		{
			name: "column named like keyword is fine",
			raw:  "SELECT id, completion_status FROM listings WHERE completion_status = 'updated_recently'",
			want: "SELECT id, completion_status FROM listings WHERE completion_status = 'updated_recently'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeGeneratedSQL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsafeSQL), "expected ErrUnsafeSQL, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
