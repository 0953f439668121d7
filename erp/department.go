// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package erp

import (
	"context"

	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/store"
)

// DepartmentResource is the organizational unit. It follows the employee
// access rules: hr_user reads, hr_manager mutates, non-managers stay
// within their own company.
func DepartmentResource() facade.Resource {
	return facade.Resource{
		Name: "department",
		Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "company_id", Type: store.FieldRelation, Target: "company"},
			{Name: "manager_id", Type: store.FieldRelation, Target: "employee"},
		},
		Required: []string{"name"},
		Filters: []facade.Filter{
			{Parameter: "name", Path: "name", Kind: facade.FilterText},
			{Parameter: "company", Path: "company_id", Kind: facade.FilterRelation},
		},
		Permits: hrPermits,
		Scope:   hrScope,
		Format: func(ctx context.Context, record store.Record, object map[string]any) error {
			for _, relation := range []struct{ field, key string }{
				{"company_id", "company"},
				{"manager_id", "manager"},
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
