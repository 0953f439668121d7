// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package erp

import (
	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/store"
)

// CompanyResource is the legal entity employees and contacts belong to.
// Any authenticated caller can read companies, mutations are reserved to
// administrators.
func CompanyResource() facade.Resource {
	return facade.Resource{
		Name: "company",
		Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "street", Type: store.FieldText},
			{Name: "city", Type: store.FieldText},
			{Name: "zip", Type: store.FieldText},
			{Name: "country_code", Type: store.FieldText},
			{Name: "lang", Type: store.FieldText},
		},
		Required: []string{"name"},
		Filters: []facade.Filter{
			{Parameter: "name", Path: "name", Kind: facade.FilterText},
		},
		Permits: map[string][]core.Operation{
			"everybody": readOperations,
		},
	}
}
