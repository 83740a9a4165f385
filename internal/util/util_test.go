package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalJSON(t *testing.T) {
	type payload struct {
		Lat Optional[float64] `json:"lat"`
	}

	t.Run("set value", func(t *testing.T) {
		data, err := json.Marshal(payload{Lat: Some(12.5)})
		require.NoError(t, err)
		assert.JSONEq(t, `{"lat":12.5}`, string(data))

		var decoded payload
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, decoded.Lat.IsSet)
		assert.Equal(t, 12.5, decoded.Lat.Val)
	})

	t.Run("unset marshals to null", func(t *testing.T) {
		data, err := json.Marshal(payload{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"lat":null}`, string(data))

		var decoded payload
		require.NoError(t, json.Unmarshal([]byte(`{"lat":null}`), &decoded))
		assert.False(t, decoded.Lat.IsSet)
	})
}

func TestOptionalUnwrapOr(t *testing.T) {
	assert.Equal(t, 5, Some(5).UnwrapOr(9))
	assert.Equal(t, 9, None[int]().UnwrapOr(9))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestRandomHex(t *testing.T) {
	first, err := RandomHex(16)
	require.NoError(t, err)
	second, err := RandomHex(16)
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.Regexp(t, "^[0-9a-f]+$", first)
	assert.NotEqual(t, first, second)
}
