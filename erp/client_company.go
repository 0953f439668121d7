// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package erp

import (
	"context"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/store"
)

// ClientCompanyResource is the external client registry, with a
// contact-person relation into the address book.
func ClientCompanyResource() facade.Resource {
	return facade.Resource{
		Name: "client_company",
		Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "phone", Type: store.FieldText},
			{Name: "email", Type: store.FieldText},
			{Name: "contact_person_id", Type: store.FieldRelation, Target: "contact"},
		},
		Required: []string{"name"},
		Filters: []facade.Filter{
			{Parameter: "name", Path: "name", Kind: facade.FilterText},
		},
		Permits: map[string][]core.Operation{
			"everybody": allOperations,
		},
		Format: func(ctx context.Context, record store.Record, object map[string]any) error {
			stub, err := relatedStub(ctx, record, "contact_person_id")
			if err != nil {
				return err
			}
			delete(object, "contact_person_id")
			object["contact_person"] = stub
			return nil
		},
	}
}
