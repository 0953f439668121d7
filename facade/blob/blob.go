// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package blob stores binary assets outside the record store, keyed by
// path-like strings such as "/product/17/image".
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for keys that have never been stored
var ErrNotFound = errors.New("no such key")

// Driver is a blob storage backend
type Driver interface {
	// Put stores data under key, overwriting a previous value
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the data stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteAllWithPrefix removes every key starting with prefix
	DeleteAllWithPrefix(ctx context.Context, prefix string) error
}
