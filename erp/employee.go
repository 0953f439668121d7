// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package erp

import (
	"context"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/core/access"
	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/store"
)

// the human-resources roles
const (
	RoleHRUser    = "hr_user"
	RoleHRManager = "hr_manager"
)

// hrScope limits callers without the manager role to records of their own
// company.
func hrScope(auth *access.Authorization) store.Predicate {
	if auth.HasRole(RoleHRManager) || auth.HasRole("admin") {
		return nil
	}
	return store.Predicate{}.Where("company_id", store.OpEquals, auth.CompanyID)
}

var hrPermits = map[string][]core.Operation{
	RoleHRUser:    readOperations,
	RoleHRManager: allOperations,
}

// EmployeeResource is the personnel record. Reading requires the hr_user
// role, mutations the hr_manager role; regular users only see their own
// company's employees.
func EmployeeResource() facade.Resource {
	return facade.Resource{
		Name: "employee",
		Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "work_email", Type: store.FieldText},
			{Name: "work_phone", Type: store.FieldText},
			{Name: "job_title", Type: store.FieldText},
			{Name: "department_id", Type: store.FieldRelation, Target: "department"},
			{Name: "manager_id", Type: store.FieldRelation, Target: "employee"},
			{Name: "company_id", Type: store.FieldRelation, Target: "company"},
			{Name: "active", Type: store.FieldBoolean},
		},
		Required: []string{"name"},
		Filters: []facade.Filter{
			{Parameter: "name", Path: "name", Kind: facade.FilterText},
			{Parameter: "department", Path: "department_id.name", Kind: facade.FilterText},
			{Parameter: "company", Path: "company_id", Kind: facade.FilterRelation},
			{Parameter: "active", Path: "active", Kind: facade.FilterBoolean},
		},
		Permits: hrPermits,
		Scope:   hrScope,
		Format: func(ctx context.Context, record store.Record, object map[string]any) error {
			for _, relation := range []struct{ field, key string }{
				{"department_id", "department"},
				{"manager_id", "manager"},
				{"company_id", "company"},
			} {
				stub, err := relatedStub(ctx, record, relation.field)
				if err != nil {
					return err
				}
				delete(object, relation.field)
				object[relation.key] = stub
			}
			return nil
		},
	}
}
