package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL(`UPDATE "invoices" SET status = ?`))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "invoices", tableFromSQL(`UPDATE "invoices" SET status = ?`))
	assert.Equal(t, "support_tickets", tableFromSQL("DELETE FROM support_tickets WHERE id = ?"))
	assert.Equal(t, "settings", tableFromSQL("INSERT INTO `settings` (key, value) VALUES (?, ?)"))
	assert.Equal(t, "", tableFromSQL("SELECT 1"))
}
