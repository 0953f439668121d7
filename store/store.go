// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package store defines the data-access layer the facade talks to.

A Store manages named collections of records. Records are identity-bearing
entities with a flat set of typed fields; relation fields hold the identifier
of a record in another collection. The facade never owns record lifecycles,
it only reads and writes projections of them through these interfaces.

Two implementations exist: store/psql persists collections in postgres,
store/inmem keeps them in memory for tests and demo setups.
*/
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an identifier does not resolve to a record.
var ErrNotFound = errors.New("no such record")

// FieldType is the declared type of a collection field
type FieldType string

// all supported field types
const (
	FieldText     FieldType = "text"
	FieldInteger  FieldType = "integer"
	FieldFloat    FieldType = "float"
	FieldBoolean  FieldType = "boolean"
	FieldRelation FieldType = "relation"
)

// Field declares a single collection field. Relation fields name the
// target collection they point into.
type Field struct {
	Name   string
	Type   FieldType
	Target string
}

// CollectionSpec declares a collection: its name and its typed fields.
type CollectionSpec struct {
	Name   string
	Fields []Field
}

// Fields is a flat mapping from field name to value, the currency of
// all record reads and writes.
type Fields map[string]any

// Store provides access to named collections.
type Store interface {
	// Collection returns the collection with the given name, or false
	// if the store does not know it.
	Collection(name string) (Collection, bool)
}

// Collection is one named set of records.
type Collection interface {
	// Search returns the records matching the predicate, ordered by
	// identifier, restricted to the given pagination window. A limit
	// of 0 returns no records, a negative limit is an error.
	Search(ctx context.Context, predicate Predicate, limit, offset int) ([]Record, error)

	// SearchCount returns the total number of records matching the
	// predicate, ignoring pagination.
	SearchCount(ctx context.Context, predicate Predicate) (int, error)

	// Create stores a new record with the given fields and returns it.
	Create(ctx context.Context, fields Fields) (Record, error)

	// Get resolves a record by identifier. It returns ErrNotFound if
	// the identifier does not resolve.
	Get(ctx context.Context, id int64) (Record, error)
}

// Record is a handle to one stored entity.
type Record interface {
	// ID returns the record's identifier.
	ID() int64

	// Get returns the value of the named field. The second return value
	// is false if the record has no such field set.
	Get(field string) (any, bool)

	// Related resolves a relation field to the record it points to.
	// It returns nil and no error when the field is not set, and
	// ErrNotFound when it is set but dangling.
	Related(ctx context.Context, field string) (Record, error)

	// Write updates the given fields on the record.
	Write(ctx context.Context, fields Fields) error

	// Delete removes the record from its collection.
	Delete(ctx context.Context) error
}
