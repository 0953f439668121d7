package core

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlural(t *testing.T) {
	assert.Equal(t, "contacts", Plural("contact"))
	assert.Equal(t, "companies", Plural("company"))
	assert.Equal(t, "client_companies", Plural("client_company"))
}

func TestOperationUnmarshal(t *testing.T) {
	var operations []Operation
	err := json.Unmarshal([]byte(`["create","read","update","delete","list"]`), &operations)
	require.NoError(t, err)
	assert.Equal(t, []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList}, operations)

	var operation Operation
	assert.Error(t, json.Unmarshal([]byte(`"drop"`), &operation))
}
