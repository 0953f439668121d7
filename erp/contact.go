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

// ContactResource is the address-book contact. Contact responses flatten
// their relations into plain strings: the company name and the country
// name.
func ContactResource() facade.Resource {
	return facade.Resource{
		Name: "contact",
		Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "email", Type: store.FieldText},
			{Name: "phone", Type: store.FieldText},
			{Name: "street", Type: store.FieldText},
			{Name: "city", Type: store.FieldText},
			{Name: "zip", Type: store.FieldText},
			{Name: "country_id", Type: store.FieldRelation, Target: "country"},
			{Name: "company_id", Type: store.FieldRelation, Target: "company"},
		},
		Required: []string{"name"},
		Filters: []facade.Filter{
			{Parameter: "name", Path: "name", Kind: facade.FilterText},
			{Parameter: "company", Path: "company_id", Kind: facade.FilterRelation},
		},
		Permits: map[string][]core.Operation{
			"everybody": allOperations,
		},
		Format: func(ctx context.Context, record store.Record, object map[string]any) error {
			companyName, err := relatedName(ctx, record, "company_id")
			if err != nil {
				return err
			}
			country, err := relatedName(ctx, record, "country_id")
			if err != nil {
				return err
			}
			delete(object, "company_id")
			delete(object, "country_id")
			object["company_name"] = companyName
			object["country"] = country
			return nil
		},
		Schema: "https://kontor.relabs.tech/schemata/contact.json",
	}
}
