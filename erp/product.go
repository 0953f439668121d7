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

// ProductResource is the catalog item. Product images live in the blob
// store and are only rendered into a single-item response when the
// request asks for them with include_image=true.
func ProductResource() facade.Resource {
	return facade.Resource{
		Name: "product",
		Fields: []store.Field{
			{Name: "name", Type: store.FieldText},
			{Name: "code", Type: store.FieldText},
			{Name: "price", Type: store.FieldFloat},
			{Name: "stock", Type: store.FieldInteger},
			{Name: "category_id", Type: store.FieldRelation, Target: "category"},
			{Name: "active", Type: store.FieldBoolean},
		},
		Required: []string{"name"},
		Filters: []facade.Filter{
			{Parameter: "name", Path: "name", Kind: facade.FilterText},
			{Parameter: "category", Path: "category_id.name", Kind: facade.FilterText},
			{Parameter: "active", Path: "active", Kind: facade.FilterBoolean},
		},
		Permits: map[string][]core.Operation{
			"everybody": allOperations,
		},
		Format: func(ctx context.Context, record store.Record, object map[string]any) error {
			stub, err := relatedStub(ctx, record, "category_id")
			if err != nil {
				return err
			}
			delete(object, "category_id")
			object["category"] = stub
			return nil
		},
		Image:  &facade.ImageField{Name: "image", Parameter: "include_image"},
		Schema: "https://kontor.relabs.tech/schemata/product.json",
	}
}
