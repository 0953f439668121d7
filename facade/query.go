// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package facade

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/relabs-tech/kontor/store"
)

const maxLimit = 100

type pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads limit and offset from the query. Missing values
// default to the maximum page size and zero. Values that do not parse as
// integers are a client error; out-of-range values are clamped, never
// rejected.
func parsePagination(query url.Values) (pagination, error) {
	p := pagination{Limit: maxLimit, Offset: 0}
	if value := query.Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("parameter limit: %s is not an integer", value)
		}
		p.Limit = limit
	}
	if value := query.Get("offset"); value != "" {
		offset, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("parameter offset: %s is not an integer", value)
		}
		p.Offset = offset
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p, nil
}

// buildPredicate translates the declared filter parameters into search
// conditions. Parameters the resource does not declare are ignored.
func buildPredicate(rc Resource, query url.Values) store.Predicate {
	var predicate store.Predicate
	for _, filter := range rc.Filters {
		value := query.Get(filter.Parameter)
		if value == "" {
			continue
		}
		switch filter.Kind {
		case FilterRelation:
			if id, err := strconv.ParseInt(value, 10, 64); err == nil {
				predicate = predicate.Where(filter.Path, store.OpEquals, id)
			} else {
				predicate = predicate.Where(filter.Path+".name", store.OpContains, value)
			}
		case FilterBoolean:
			predicate = predicate.Where(filter.Path, store.OpEquals, strings.EqualFold(value, "true"))
		default:
			predicate = predicate.Where(filter.Path, store.OpContains, value)
		}
	}
	return predicate
}
