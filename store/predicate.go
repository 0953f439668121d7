// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package store

import "strings"

// Operator is a comparison operator in a predicate condition
type Operator string

// the supported operators
const (
	// OpEquals matches the field value exactly
	OpEquals Operator = "="
	// OpContains matches case-insensitive substrings of text fields
	OpContains Operator = "~"
)

// Condition is a single (field, operator, value) constraint. The field
// may be a dotted path with one relation hop, e.g. "company_id.name",
// which constrains a field of the record the relation points to.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Predicate is an ordered conjunction of conditions. The empty predicate
// matches every record.
type Predicate []Condition

// Where returns a new predicate with an appended condition.
func (p Predicate) Where(field string, operator Operator, value any) Predicate {
	return append(p, Condition{Field: field, Operator: operator, Value: value})
}

// SplitPath splits a condition field into its base field and the related
// field, if any. For "company_id.name" it returns ("company_id", "name");
// for a plain field it returns the field and an empty string.
func (c Condition) SplitPath() (string, string) {
	if i := strings.IndexRune(c.Field, '.'); i >= 0 {
		return c.Field[:i], c.Field[i+1:]
	}
	return c.Field, ""
}
