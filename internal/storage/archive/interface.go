// Package archive persists finished reports to local disk or S3.
package archive

import "context"

// Storage is a flat key/blob store. Paths use forward slashes.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)

	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
