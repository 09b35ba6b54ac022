package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/kjk/common/atomicfile"
)

// Dir stores each collection in a separate file <Dir>/<key>.dat
// Files are replaced atomically so a crash leaves either the old
// or the new collection, never a partial one.
type Dir struct {
	Dir string
}

// OpenDir creates dir if it doesn't exist
func OpenDir(dir string) (*Dir, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Dir{Dir: dir}, nil
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.Dir, key+".dat")
}

func (d *Dir) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	v, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (d *Dir) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := atomicfile.New(d.path(key))
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = f.Write(value); err != nil {
		return err
	}
	return f.Close()
}
