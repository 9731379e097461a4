package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvewatch/cve-dashboard/internal/config"
)

func TestDSN_RoundTrips(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db.internal", Port: "3307", User: "dash", Password: "p@ss:w/rd", Name: "cves"}

	mc, err := mysql.ParseDSN(DSN(cfg))
	require.NoError(t, err)

	assert.Equal(t, "dash", mc.User)
	assert.Equal(t, "p@ss:w/rd", mc.Passwd)
	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.Equal(t, "cves", mc.DBName)
	assert.True(t, mc.ParseTime)
}

func TestMigrateURL_EnablesMultiStatements(t *testing.T) {
	u, err := MigrateURL(config.DatabaseConfig{Host: "h", Port: "3306", User: "u", Name: "d"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "mysql://u@tcp(h:3306)/d?"))
	assert.Contains(t, u, "multiStatements=true")
}

func TestMigrations_ArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	b, err := fs.ReadFile(migrationsFS, "migrations/000003_create_vulnerabilities.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "UNIQUE KEY unique_user_cve (cve_id, user_id)")
}
