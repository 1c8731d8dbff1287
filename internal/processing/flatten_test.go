package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenVariables_Nested(t *testing.T) {
	data := []byte(`{
		"user": {"name": "jane", "tags": ["a", "b"]},
		"retry": true,
		"note": null,
		"score": 0.50
	}`)

	fields, err := FlattenVariables(data)
	require.NoError(t, err)

	assert.Equal(t, []FlatField{
		{Path: "note", Value: "null"},
		{Path: "retry", Value: "true"},
		{Path: "score", Value: "0.50"},
		{Path: "user.name", Value: "jane"},
		{Path: "user.tags.0", Value: "a"},
		{Path: "user.tags.1", Value: "b"},
	}, fields)
}

func TestFlattenVariables_NumbersKeepSourceForm(t *testing.T) {
	fields, err := FlattenVariables([]byte(`{"a": 1e3, "b": 42, "c": 3.14}`))
	require.NoError(t, err)

	assert.Equal(t, []FlatField{
		{Path: "a", Value: "1e3"},
		{Path: "b", Value: "42"},
		{Path: "c", Value: "3.14"},
	}, fields)
}

func TestFlattenVariables_EmptyContainers(t *testing.T) {
	fields, err := FlattenVariables([]byte(`{"a": {}, "b": [], "c": "kept"}`))
	require.NoError(t, err)

	assert.Equal(t, []FlatField{{Path: "c", Value: "kept"}}, fields)
}

func TestFlattenVariables_EmptyObject(t *testing.T) {
	fields, err := FlattenVariables([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestFlattenVariables_Invalid(t *testing.T) {
	_, err := FlattenVariables([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = FlattenVariables([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)

	_, err = FlattenVariables([]byte(`"scalar"`))
	assert.Error(t, err)
}
