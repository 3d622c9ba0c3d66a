package postgres_test

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addConstraint = regexp.MustCompile(`ADD CONSTRAINT (\w+)`)

// La migración se aplica en cada arranque del despliegue; volver a correrla no debe fallar.
func TestMigracion_Reejecutable(t *testing.T) {
	raw, err := os.ReadFile("../../../migrations/001_init.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, line := range strings.Split(sql, "\n") {
		stmt := strings.TrimSpace(line)
		if strings.HasPrefix(stmt, "CREATE ") {
			assert.Contains(t, stmt, "IF NOT EXISTS", stmt)
		}
	}
	for _, m := range addConstraint.FindAllStringSubmatch(sql, -1) {
		assert.Contains(t, sql, "WHERE conname = '"+m[1]+"'", "constraint %s sin guarda", m[1])
	}
}
