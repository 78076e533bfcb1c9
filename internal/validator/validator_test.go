package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickerRequest struct {
	Symbol string `json:"symbol" validate:"required,ticker"`
}

func TestTickerRule(t *testing.T) {
	t.Parallel()
	v := New()

	for _, valid := range []string{"AAPL", "msft", "BRK.B", "RDS-A", "A"} {
		assert.NoError(t, v.Validate(&tickerRequest{Symbol: valid}), valid)
	}

	for _, invalid := range []string{"TOOLONGSYMBOL", "1AAPL", "AA PL", "$SPY"} {
		assert.Error(t, v.Validate(&tickerRequest{Symbol: invalid}), invalid)
	}
}

func TestValidationError_UsesJSONFieldNames(t *testing.T) {
	t.Parallel()
	v := New()

	err := v.Validate(&tickerRequest{})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, vErr.Errors, "symbol")
}
