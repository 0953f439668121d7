// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package erp declares the business resources served by the facade:
contacts, employees, companies, departments, products and client
companies.

Resources reference two auxiliary collections that are not served over
REST: country (contact addresses) and category (product grouping). They
exist in the store so relation fields have a target to resolve names
from.
*/
package erp

import (
	"context"
	"errors"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/store"
)

var allOperations = []core.Operation{
	core.OperationCreate,
	core.OperationRead,
	core.OperationUpdate,
	core.OperationDelete,
	core.OperationList,
}

var readOperations = []core.Operation{
	core.OperationRead,
	core.OperationList,
}

// Resources returns all resource configurations
func Resources() []facade.Resource {
	return []facade.Resource{
		ContactResource(),
		EmployeeResource(),
		CompanyResource(),
		DepartmentResource(),
		ProductResource(),
		ClientCompanyResource(),
	}
}

// Collections returns all collection declarations for the store, the
// served resources plus the auxiliary ones.
func Collections() []store.CollectionSpec {
	specs := []store.CollectionSpec{
		{Name: "country", Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "code", Type: store.FieldText},
		}},
		{Name: "category", Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
		}},
	}
	for _, rc := range Resources() {
		specs = append(specs, rc.Spec())
	}
	return specs
}

// relatedName resolves a relation field to the related record's name.
// Unset and dangling relations resolve to nil.
func relatedName(ctx context.Context, record store.Record, field string) (any, error) {
	related, err := record.Related(ctx, field)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if related == nil {
		return nil, nil
	}
	name, _ := related.Get("name")
	return name, nil
}

// relatedStub resolves a relation field to an {id, name} object.
// Unset and dangling relations resolve to nil.
func relatedStub(ctx context.Context, record store.Record, field string) (any, error) {
	related, err := record.Related(ctx, field)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if related == nil {
		return nil, nil
	}
	name, _ := related.Get("name")
	return map[string]any{"id": related.ID(), "name": name}, nil
}
