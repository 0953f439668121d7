// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalFilesystem implements Driver on a local directory
type LocalFilesystem struct {
	basePath string
}

// NewLocalFilesystem returns a filesystem driver rooted at basePath,
// creating the directory if needed.
func NewLocalFilesystem(basePath string) (*LocalFilesystem, error) {
	if basePath == "" {
		return nil, fmt.Errorf("basePath must not be empty")
	}
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", basePath, err)
	}
	return &LocalFilesystem{basePath: basePath}, nil
}

func (l *LocalFilesystem) path(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

// Put stores data under key
func (l *LocalFilesystem) Put(ctx context.Context, key string, data []byte) error {
	file := l.path(key)
	if err := os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

// Get returns the data stored under key
func (l *LocalFilesystem) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Delete removes the key
func (l *LocalFilesystem) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DeleteAllWithPrefix removes every key starting with prefix
func (l *LocalFilesystem) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	return os.RemoveAll(l.path(prefix))
}
