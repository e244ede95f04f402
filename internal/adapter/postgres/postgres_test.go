package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSSLMode(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "disable"},
		{"postgres://u:p@localhost:5432/db?sslmode=REQUIRE", "require"},
		{"postgres://u:p@localhost:5432/db", "prefer (default)"},
		{"://bad", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSSLMode(tt.url))
		})
	}
}

func TestMigrationFilesEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")

	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}
