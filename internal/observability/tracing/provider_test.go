package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsBlockedKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("stage", "late_fees"),
		attribute.String("customer.email", "a@example.com"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("stage"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	short := errors.New("boom")
	assert.Same(t, short, SafeError(short))

	long := errors.New(strings.Repeat("x", 300))
	assert.Len(t, SafeError(long).Error(), maxErrorMessage)
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter("carrier-pigeon", "")
	assert.Error(t, err)
}
