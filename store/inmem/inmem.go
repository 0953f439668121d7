// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package inmem provides an in-memory implementation of the store interfaces.

It serves unit tests and demo setups that run without a database. All
collections share one store-wide lock; relation lookups cross collection
boundaries and must see a consistent state.
*/
package inmem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/relabs-tech/kontor/store"
)

// Store is an in-memory store
type Store struct {
	mutex       sync.RWMutex
	collections map[string]*collection
}

// New creates a new in-memory store with the given collections
func New(specs ...store.CollectionSpec) *Store {
	s := &Store{collections: make(map[string]*collection)}
	for _, spec := range specs {
		s.collections[spec.Name] = &collection{
			store:   s,
			spec:    spec,
			records: make(map[int64]store.Fields),
		}
	}
	return s
}

// Collection returns the collection with the given name
func (s *Store) Collection(name string) (store.Collection, bool) {
	c, ok := s.collections[name]
	return c, ok
}

type collection struct {
	store   *Store
	spec    store.CollectionSpec
	records map[int64]store.Fields
	lastID  int64
}

func (c *collection) field(name string) (store.Field, bool) {
	for _, f := range c.spec.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return store.Field{}, false
}

// normalize converts numeric values to float64 so that values coming
// from JSON (always float64) compare equal to stored integers.
func normalize(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return value
	}
}

func (c *collection) matches(predicate store.Predicate, fields store.Fields) (bool, error) {
	for _, condition := range predicate {
		base, related := condition.SplitPath()
		value, ok := fields[base]
		if related != "" {
			if !ok || value == nil {
				return false, nil
			}
			field, known := c.field(base)
			if !known || field.Type != store.FieldRelation {
				return false, fmt.Errorf("field %s is not a relation", base)
			}
			target, known := c.store.collections[field.Target]
			if !known {
				return false, fmt.Errorf("unknown collection %s", field.Target)
			}
			id, isID := asID(value)
			if !isID {
				return false, nil
			}
			targetFields, exists := target.records[id]
			if !exists {
				return false, nil
			}
			value, ok = targetFields[related]
		}
		if !ok || value == nil {
			return false, nil
		}
		switch condition.Operator {
		case store.OpEquals:
			if normalize(value) != normalize(condition.Value) {
				return false, nil
			}
		case store.OpContains:
			text, isText := value.(string)
			substr, substrIsText := condition.Value.(string)
			if !isText || !substrIsText {
				return false, nil
			}
			if !strings.Contains(strings.ToLower(text), strings.ToLower(substr)) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unknown operator %s", condition.Operator)
		}
	}
	return true, nil
}

func asID(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func (c *collection) sortedIDs() []int64 {
	ids := make([]int64, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Search returns the matching records in identifier order
func (c *collection) Search(ctx context.Context, predicate store.Predicate, limit, offset int) ([]store.Record, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative limit")
	}
	if offset < 0 {
		offset = 0
	}
	c.store.mutex.RLock()
	defer c.store.mutex.RUnlock()

	result := []store.Record{}
	skipped := 0
	for _, id := range c.sortedIDs() {
		if len(result) >= limit {
			break
		}
		ok, err := c.matches(predicate, c.records[id])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, &record{collection: c, id: id})
	}
	return result, nil
}

// SearchCount returns the total number of matching records
func (c *collection) SearchCount(ctx context.Context, predicate store.Predicate) (int, error) {
	c.store.mutex.RLock()
	defer c.store.mutex.RUnlock()

	count := 0
	for _, fields := range c.records {
		ok, err := c.matches(predicate, fields)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// Create stores a new record
func (c *collection) Create(ctx context.Context, fields store.Fields) (store.Record, error) {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()

	c.lastID++
	id := c.lastID
	stored := store.Fields{}
	for key, value := range fields {
		if field, ok := c.field(key); ok && field.Type == store.FieldRelation {
			if value != nil {
				relatedID, isID := asID(value)
				if !isID {
					return nil, fmt.Errorf("field %s: not a record identifier", key)
				}
				value = relatedID
			}
		}
		stored[key] = value
	}
	c.records[id] = stored
	return &record{collection: c, id: id}, nil
}

// Get resolves a record by identifier
func (c *collection) Get(ctx context.Context, id int64) (store.Record, error) {
	c.store.mutex.RLock()
	defer c.store.mutex.RUnlock()
	if _, ok := c.records[id]; !ok {
		return nil, store.ErrNotFound
	}
	return &record{collection: c, id: id}, nil
}

type record struct {
	collection *collection
	id         int64
}

func (r *record) ID() int64 {
	return r.id
}

func (r *record) Get(field string) (any, bool) {
	r.collection.store.mutex.RLock()
	defer r.collection.store.mutex.RUnlock()
	fields, ok := r.collection.records[r.id]
	if !ok {
		return nil, false
	}
	value, ok := fields[field]
	return value, ok
}

func (r *record) Related(ctx context.Context, field string) (store.Record, error) {
	spec, ok := r.collection.field(field)
	if !ok || spec.Type != store.FieldRelation {
		return nil, fmt.Errorf("field %s is not a relation", field)
	}
	value, ok := r.Get(field)
	if !ok || value == nil {
		return nil, nil
	}
	id, isID := asID(value)
	if !isID {
		return nil, fmt.Errorf("field %s: not a record identifier", field)
	}
	target, ok := r.collection.store.collections[spec.Target]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", spec.Target)
	}
	return target.Get(ctx, id)
}

func (r *record) Write(ctx context.Context, fields store.Fields) error {
	r.collection.store.mutex.Lock()
	defer r.collection.store.mutex.Unlock()
	stored, ok := r.collection.records[r.id]
	if !ok {
		return store.ErrNotFound
	}
	for key, value := range fields {
		if field, ok := r.collection.field(key); ok && field.Type == store.FieldRelation && value != nil {
			relatedID, isID := asID(value)
			if !isID {
				return fmt.Errorf("field %s: not a record identifier", key)
			}
			value = relatedID
		}
		stored[key] = value
	}
	return nil
}

func (r *record) Delete(ctx context.Context) error {
	r.collection.store.mutex.Lock()
	defer r.collection.store.mutex.Unlock()
	if _, ok := r.collection.records[r.id]; !ok {
		return store.ErrNotFound
	}
	delete(r.collection.records, r.id)
	return nil
}
