package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceNumber(t *testing.T) {
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	got, err := InvoiceNumber(DefaultInvoiceNumberTemplate, day, 7)
	require.NoError(t, err)
	assert.Equal(t, "INV-20240108-0007", got)

	got, err = InvoiceNumber("{YY}/{SEQ}", day, 12)
	require.NoError(t, err)
	assert.Equal(t, "24/12", got)
}

func TestInvoiceNumberRejectsBadInput(t *testing.T) {
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	_, err := InvoiceNumber("", day, 1)
	assert.Error(t, err)

	_, err = InvoiceNumber(DefaultInvoiceNumberTemplate, day, 0)
	assert.Error(t, err)

	_, err = InvoiceNumber("INV-{CUSTOMER}", day, 1)
	assert.Error(t, err)
}
