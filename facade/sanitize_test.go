package facade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kontor/store"
)

var sanitizeResource = Resource{
	Name: "contact",
	Fields: []store.Field{
		{Name: "name", Type: store.FieldText},
		{Name: "email", Type: store.FieldText},
		{Name: "company_id", Type: store.FieldRelation, Target: "company"},
	},
	Required: []string{"name"},
}

func TestSanitizeKeepsOnlyWritableFields(t *testing.T) {
	fields, err := sanitize(sanitizeResource, map[string]any{
		"name":     "Acme",
		"email":    nil,
		"id":       int64(999),
		"password": "hunter2",
		"nested":   map[string]any{"deep": true},
	})
	require.NoError(t, err)
	assert.Equal(t, store.Fields{"name": "Acme", "email": nil}, fields)
}

func TestSanitizeCoercesRelationValues(t *testing.T) {
	fields, err := sanitize(sanitizeResource, map[string]any{"company_id": float64(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), fields["company_id"])

	// a relation stub collapses to its identifier
	fields, err = sanitize(sanitizeResource, map[string]any{
		"company_id": map[string]any{"id": float64(7), "name": "Initech"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), fields["company_id"])

	fields, err = sanitize(sanitizeResource, map[string]any{"company_id": nil})
	require.NoError(t, err)
	assert.Nil(t, fields["company_id"])

	_, err = sanitize(sanitizeResource, map[string]any{"company_id": "seven"})
	assert.Error(t, err)
}

func TestCheckRequired(t *testing.T) {
	assert.NoError(t, checkRequired(sanitizeResource, store.Fields{"name": "Acme"}))
	assert.Error(t, checkRequired(sanitizeResource, store.Fields{}))
	assert.Error(t, checkRequired(sanitizeResource, store.Fields{"name": ""}))
	assert.Error(t, checkRequired(sanitizeResource, store.Fields{"name": nil}))
}
