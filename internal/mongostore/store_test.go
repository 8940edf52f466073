package mongostore

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Database: "ledger"}, nil)
	assert.ErrorIs(t, err, ErrEmptyURI)

	_, err = NewClient(context.Background(), Config{URI: "mongodb://localhost:27017", Database: "  "}, nil)
	assert.ErrorIs(t, err, ErrEmptyDatabaseName)
}

func TestDecimal128RoundTrip(t *testing.T) {
	for _, value := range []string{"0", "0.01", "100.50", "-25.25", "999999999999.99"} {
		t.Run(value, func(t *testing.T) {
			d := decimal.RequireFromString(value)

			converted, err := toDecimal128(d)
			require.NoError(t, err)

			back, err := fromDecimal128(converted)
			require.NoError(t, err)
			assert.True(t, d.Equal(back), "expected %s, got %s", d, back)
		})
	}
}
