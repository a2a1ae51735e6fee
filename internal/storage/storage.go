package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get when no artifact is stored under the name.
var ErrNotFound = errors.New("artifact not found")

// Service stores image artifacts by flat name.
type Service interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
}

// ValidateName rejects names that could escape the store's root.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) || path.Base(name) != name {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
