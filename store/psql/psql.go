// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package psql implements the store interfaces on a postgres database.

Each collection becomes one table in the configured schema, with a bigserial
identifier, one typed column per declared field and a creation timestamp.
Tables are created on startup if they do not exist. Relation fields become
plain bigint columns; referential integrity is not enforced with foreign
keys because the business collections reference each other in cycles
(employee -> department -> manager -> employee).
*/
package psql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/relabs-tech/kontor/core/csql"
	"github.com/relabs-tech/kontor/core/logger"
	"github.com/relabs-tech/kontor/store"
)

// Store is a postgres backed store
type Store struct {
	db          *csql.DB
	collections map[string]*collection
}

// MustNew creates a new postgres store for the given collections. It creates
// the tables if they do not exist and panics on invalid configuration.
func MustNew(db *csql.DB, specs ...store.CollectionSpec) *Store {
	s := &Store{db: db, collections: make(map[string]*collection)}
	for _, spec := range specs {
		c := newCollection(s, spec)
		if _, err := db.Exec(c.createQuery); err != nil {
			logger.Default().WithError(err).Errorf("Error 3101: cannot create table for collection %s", spec.Name)
			panic(fmt.Sprintf("invalid configuration: %v", err))
		}
		s.collections[spec.Name] = c
	}
	return s
}

// Collection returns the collection with the given name
func (s *Store) Collection(name string) (store.Collection, bool) {
	c, ok := s.collections[name]
	return c, ok
}

type collection struct {
	store *Store
	spec  store.CollectionSpec

	createQuery string
	readQuery   string // SELECT columns FROM table
	countQuery  string // SELECT count(*) FROM table
	insertInto  string // INSERT INTO table
	updateTable string // UPDATE table SET
	deleteFrom  string // DELETE FROM table
	columns     []string
}

func sqlType(t store.FieldType) string {
	switch t {
	case store.FieldInteger, store.FieldRelation:
		return "bigint"
	case store.FieldFloat:
		return "double precision"
	case store.FieldBoolean:
		return "boolean"
	default:
		return "varchar"
	}
}

func newCollection(s *Store, spec store.CollectionSpec) *collection {
	schema := s.db.Schema
	table := fmt.Sprintf("%s.\"%s\"", schema, spec.Name)

	createColumns := []string{"id bigserial NOT NULL PRIMARY KEY"}
	columns := []string{"id"}
	createIndices := ""
	for _, field := range spec.Fields {
		createColumns = append(createColumns, fmt.Sprintf("\"%s\" %s", field.Name, sqlType(field.Type)))
		columns = append(columns, field.Name)
		if field.Type == store.FieldRelation {
			createIndices += fmt.Sprintf("CREATE index IF NOT EXISTS %s ON %s(\"%s\");",
				"relation_index_"+spec.Name+"_"+field.Name, table, field.Name)
		}
	}
	createColumns = append(createColumns, "created_at timestamp NOT NULL DEFAULT now()")

	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = "\"" + column + "\""
	}

	return &collection{
		store:       s,
		spec:        spec,
		createQuery: "CREATE table IF NOT EXISTS " + table + "(" + strings.Join(createColumns, ", ") + ");" + createIndices,
		readQuery:   "SELECT " + strings.Join(quoted, ", ") + " FROM " + table + " ",
		countQuery:  "SELECT count(*) FROM " + table + " ",
		insertInto:  "INSERT INTO " + table + " ",
		updateTable: "UPDATE " + table + " SET ",
		deleteFrom:  "DELETE FROM " + table + " ",
		columns:     columns,
	}
}

func (c *collection) field(name string) (store.Field, bool) {
	for _, f := range c.spec.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return store.Field{}, false
}

// whereClause translates a predicate into a WHERE clause with numbered
// parameters starting at $1. Dotted paths become an IN subquery against
// the target collection's table.
func (c *collection) whereClause(predicate store.Predicate) (string, []any, error) {
	if len(predicate) == 0 {
		return "", nil, nil
	}
	var conditions []string
	var parameters []any
	for _, condition := range predicate {
		base, related := condition.SplitPath()
		field, ok := c.field(base)
		if !ok {
			return "", nil, fmt.Errorf("unknown field %s", base)
		}
		placeholder := "$" + strconv.Itoa(len(parameters)+1)
		value := condition.Value
		operator := "="
		if condition.Operator == store.OpContains {
			operator = "ILIKE"
			value = "%" + fmt.Sprintf("%v", value) + "%"
		}
		if related == "" {
			conditions = append(conditions, fmt.Sprintf("(\"%s\" %s %s)", base, operator, placeholder))
		} else {
			if field.Type != store.FieldRelation {
				return "", nil, fmt.Errorf("field %s is not a relation", base)
			}
			target, ok := c.store.collections[field.Target]
			if !ok {
				return "", nil, fmt.Errorf("unknown collection %s", field.Target)
			}
			if _, ok := target.field(related); ok == false {
				return "", nil, fmt.Errorf("unknown field %s of %s", related, field.Target)
			}
			conditions = append(conditions, fmt.Sprintf("(\"%s\" IN (SELECT id FROM %s.\"%s\" WHERE \"%s\" %s %s))",
				base, c.store.db.Schema, field.Target, related, operator, placeholder))
		}
		parameters = append(parameters, value)
	}
	return "WHERE " + strings.Join(conditions, " AND ") + " ", parameters, nil
}

// scanValues returns scan destinations for the collection's columns plus
// a function converting them into Fields.
func (c *collection) scanValues() ([]any, func() (int64, store.Fields)) {
	values := make([]any, len(c.columns))
	values[0] = new(int64)
	for i, field := range c.spec.Fields {
		switch field.Type {
		case store.FieldInteger, store.FieldRelation:
			values[i+1] = new(sql.NullInt64)
		case store.FieldFloat:
			values[i+1] = new(sql.NullFloat64)
		case store.FieldBoolean:
			values[i+1] = new(sql.NullBool)
		default:
			values[i+1] = new(sql.NullString)
		}
	}
	collect := func() (int64, store.Fields) {
		fields := store.Fields{}
		for i, field := range c.spec.Fields {
			switch value := values[i+1].(type) {
			case *sql.NullInt64:
				if value.Valid {
					fields[field.Name] = value.Int64
				} else {
					fields[field.Name] = nil
				}
			case *sql.NullFloat64:
				if value.Valid {
					fields[field.Name] = value.Float64
				} else {
					fields[field.Name] = nil
				}
			case *sql.NullBool:
				if value.Valid {
					fields[field.Name] = value.Bool
				} else {
					fields[field.Name] = nil
				}
			case *sql.NullString:
				if value.Valid {
					fields[field.Name] = value.String
				} else {
					fields[field.Name] = nil
				}
			}
		}
		return *values[0].(*int64), fields
	}
	return values, collect
}

// Search returns the matching records in identifier order
func (c *collection) Search(ctx context.Context, predicate store.Predicate, limit, offset int) ([]store.Record, error) {
	if limit < 0 {
		return nil, fmt.Errorf("negative limit")
	}
	if offset < 0 {
		offset = 0
	}
	where, parameters, err := c.whereClause(predicate)
	if err != nil {
		return nil, err
	}
	query := c.readQuery + where + fmt.Sprintf("ORDER BY id LIMIT $%d OFFSET $%d;", len(parameters)+1, len(parameters)+2)
	parameters = append(parameters, limit, offset)

	rows, err := c.store.db.QueryContext(ctx, query, parameters...)
	if err != nil {
		return nil, fmt.Errorf("cannot execute query `%s`: %w", query, err)
	}
	defer rows.Close()

	result := []store.Record{}
	for rows.Next() {
		values, collect := c.scanValues()
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		id, fields := collect()
		result = append(result, &record{collection: c, id: id, fields: fields})
	}
	return result, rows.Err()
}

// SearchCount returns the total number of matching records
func (c *collection) SearchCount(ctx context.Context, predicate store.Predicate) (int, error) {
	where, parameters, err := c.whereClause(predicate)
	if err != nil {
		return 0, err
	}
	var count int
	err = c.store.db.QueryRowContext(ctx, c.countQuery+where+";", parameters...).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Create stores a new record
func (c *collection) Create(ctx context.Context, fields store.Fields) (store.Record, error) {
	var columns []string
	var placeholders []string
	var parameters []any
	for _, field := range c.spec.Fields {
		value, ok := fields[field.Name]
		if !ok {
			continue
		}
		columns = append(columns, "\""+field.Name+"\"")
		placeholders = append(placeholders, "$"+strconv.Itoa(len(parameters)+1))
		parameters = append(parameters, value)
	}
	query := c.insertInto + "(" + strings.Join(columns, ", ") + ") VALUES(" + strings.Join(placeholders, ", ") + ") RETURNING id;"
	if len(columns) == 0 {
		query = c.insertInto + "DEFAULT VALUES RETURNING id;"
	}
	var id int64
	if err := c.store.db.QueryRowContext(ctx, query, parameters...).Scan(&id); err != nil {
		return nil, fmt.Errorf("cannot execute query `%s`: %w", query, err)
	}
	return c.Get(ctx, id)
}

// Get resolves a record by identifier
func (c *collection) Get(ctx context.Context, id int64) (store.Record, error) {
	values, collect := c.scanValues()
	err := c.store.db.QueryRowContext(ctx, c.readQuery+"WHERE id = $1;", id).Scan(values...)
	if err == csql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	recordID, fields := collect()
	return &record{collection: c, id: recordID, fields: fields}, nil
}

type record struct {
	collection *collection
	id         int64
	fields     store.Fields
}

func (r *record) ID() int64 {
	return r.id
}

func (r *record) Get(field string) (any, bool) {
	value, ok := r.fields[field]
	return value, ok
}

func (r *record) Related(ctx context.Context, field string) (store.Record, error) {
	spec, ok := r.collection.field(field)
	if !ok || spec.Type != store.FieldRelation {
		return nil, fmt.Errorf("field %s is not a relation", field)
	}
	value, ok := r.fields[field]
	if !ok || value == nil {
		return nil, nil
	}
	id, ok := value.(int64)
	if !ok {
		return nil, fmt.Errorf("field %s: not a record identifier", field)
	}
	target, ok := r.collection.store.collections[spec.Target]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", spec.Target)
	}
	return target.Get(ctx, id)
}

func (r *record) Write(ctx context.Context, fields store.Fields) error {
	var sets []string
	var parameters []any
	for _, field := range r.collection.spec.Fields {
		value, ok := fields[field.Name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("\"%s\" = $%d", field.Name, len(parameters)+1))
		parameters = append(parameters, value)
	}
	if len(sets) == 0 {
		return nil
	}
	query := r.collection.updateTable + strings.Join(sets, ", ") + fmt.Sprintf(" WHERE id = $%d;", len(parameters)+1)
	parameters = append(parameters, r.id)
	result, err := r.collection.store.db.ExecContext(ctx, query, parameters...)
	if err != nil {
		return fmt.Errorf("cannot execute query `%s`: %w", query, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	for key, value := range fields {
		if _, ok := r.collection.field(key); ok {
			r.fields[key] = value
		}
	}
	return nil
}

func (r *record) Delete(ctx context.Context) error {
	result, err := r.collection.store.db.ExecContext(ctx, r.deleteQuery(), r.id)
	if err != nil {
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *record) deleteQuery() string {
	return r.collection.deleteFrom + "WHERE id = $1;"
}
