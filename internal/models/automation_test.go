package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumValidation(t *testing.T) {
	assert.True(t, OperatorGreaterThanOrEqual.Valid())
	assert.False(t, ConditionOperator("=").Valid())
	assert.False(t, ConditionOperator("").Valid())

	assert.True(t, ActionSendNotification.Valid())
	assert.False(t, ActionType("drop_tables").Valid())

	assert.True(t, StatusActive.Valid())
	assert.False(t, RuleStatus("archived").Valid())
}

func TestJSONMapColumn(t *testing.T) {
	v, err := JSONMap{"key": "value"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"value"}`, v.(string))

	// nil map still serializes to a valid empty object.
	v, err = JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	var m JSONMap
	require.NoError(t, m.Scan(`{"a":1}`))
	assert.Equal(t, float64(1), m["a"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))
}

func TestStringListColumn(t *testing.T) {
	v, err := StringList{"a@example.com"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `["a@example.com"]`, v.(string))

	v, err = StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var l StringList
	require.NoError(t, l.Scan([]byte(`["x","y"]`)))
	assert.Equal(t, StringList{"x", "y"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)
}
