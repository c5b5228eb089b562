package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTaskRequest_DistinguishesAbsentNullValue(t *testing.T) {
	t.Parallel()

	var absent UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &absent))
	assert.False(t, absent.DueDate.Set)
	assert.False(t, absent.Description.Set)

	var null UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":null,"description":null}`), &null))
	assert.True(t, null.DueDate.Set)
	assert.False(t, null.DueDate.Valid)
	assert.True(t, null.Description.Set)

	var value UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":"2030-01-01"}`), &value))
	assert.True(t, value.DueDate.Valid)
	assert.Equal(t, "2030-01-01", value.DueDate.Value)

	var bad UpdateTaskRequest
	assert.Error(t, json.Unmarshal([]byte(`{"dueDate":42}`), &bad))
}

func TestUpdateTaskRequest_EncodeOmitsAbsent(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UpdateTaskRequest{Title: Some("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"x"}`, string(b))

	b, err = json.Marshal(UpdateTaskRequest{DueDate: Null[string](), Description: Some("d")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dueDate":null,"description":"d"}`, string(b))
}
