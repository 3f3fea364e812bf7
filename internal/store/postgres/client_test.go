package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "postgres://u:p@db:5432/ledger?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "ledger"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Contains(t, DSN(ClientConfig{Host: "h", Port: 6543, SSLMode: "require"}), ":6543/?sslmode=require")
}

func TestMigrationNamesSorted(t *testing.T) {
	t.Parallel()
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_ledger.sql", names[0])
}
