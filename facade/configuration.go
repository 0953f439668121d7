// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package facade

import (
	"context"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/core/access"
	"github.com/relabs-tech/kontor/store"
)

// FilterKind selects how a query parameter is translated into a search
// condition.
type FilterKind int

const (
	// FilterText matches the parameter value as case-insensitive substring
	// of the field at Path.
	FilterText FilterKind = iota
	// FilterRelation matches an integer value exactly against the relation
	// field at Path, and any other value as substring of the related
	// record's name.
	FilterRelation
	// FilterBoolean matches true for the value "true" in any casing and
	// false for everything else.
	FilterBoolean
)

// Filter declares one supported query parameter of a resource's list
// operation. Unknown parameters are ignored.
type Filter struct {
	Parameter string
	Path      string // field name, or dotted path through one relation
	Kind      FilterKind
}

// ImageField declares a binary field stored in the blob store rather than
// in the record. The field is only rendered when the request carries
// Parameter=true; its upload value is base64.
type ImageField struct {
	Name      string
	Parameter string
}

// Formatter reshapes the allow-listed raw fields of a record into the
// response object, typically resolving relation fields into names or
// {id,name} stubs.
type Formatter func(ctx context.Context, record store.Record, object map[string]any) error

// Resource is the complete configuration of one REST collection. The
// facade serves all resources with the same generic handlers; everything
// resource-specific lives here.
type Resource struct {
	// Name is the singular collection name in the store, e.g. "employee".
	Name string

	// Fields declares the stored fields, including relation targets.
	Fields []store.Field

	// Readable lists the fields rendered into responses. Empty means all
	// declared fields.
	Readable []string

	// Writable lists the fields accepted on create and update. Payload
	// keys outside the list are dropped, values pass through unmodified.
	Writable []string

	// Required lists fields that must be present and non-empty on create.
	Required []string

	// Filters declares the supported list query parameters.
	Filters []Filter

	// Permits maps roles to permitted operations. The pseudo-role
	// "everybody" covers any authenticated caller; "admin" may always do
	// everything. An operation no role permits is never authorized.
	Permits map[string][]core.Operation

	// Scope optionally narrows visibility for a caller, e.g. to their own
	// company. The returned conditions are appended to every search;
	// item operations on records outside the scope yield 403, and create
	// payloads must stay inside it. Nil or an empty predicate means
	// unrestricted.
	Scope func(auth *access.Authorization) store.Predicate

	// Format optionally reshapes response objects.
	Format Formatter

	// Image optionally declares a blob-backed binary field.
	Image *ImageField

	// Schema optionally names a JSON schema the create and update payloads
	// must validate against.
	Schema string
}

func (rc Resource) field(name string) (store.Field, bool) {
	for _, f := range rc.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return store.Field{}, false
}

func (rc Resource) readable() []string {
	if len(rc.Readable) > 0 {
		return rc.Readable
	}
	names := make([]string, len(rc.Fields))
	for i, f := range rc.Fields {
		names[i] = f.Name
	}
	return names
}

func (rc Resource) writable() []string {
	if len(rc.Writable) > 0 {
		return rc.Writable
	}
	names := make([]string, len(rc.Fields))
	for i, f := range rc.Fields {
		names[i] = f.Name
	}
	return names
}

// Spec returns the store collection declaration for this resource.
func (rc Resource) Spec() store.CollectionSpec {
	return store.CollectionSpec{Name: rc.Name, Fields: rc.Fields}
}
