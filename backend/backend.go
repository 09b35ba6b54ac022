// Package backend has implementations of appendstore.Backend:
// in memory, files in a directory, a journal file, badger, sqlite and
// S3-compatible object storage.
package backend

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kjk/ledgerstore/appendstore"
)

const (
	KindMemory  = "memory"
	KindDir     = "dir"
	KindJournal = "journal"
	KindBadger  = "badger"
	KindSQLite  = "sqlite"
	KindMinio   = "minio"
)

// Kinds lists all backend kinds accepted by Open
var Kinds = []string{KindMemory, KindDir, KindJournal, KindBadger, KindSQLite, KindMinio}

type Config struct {
	// one of Kinds
	Kind string `mapstructure:"kind"`
	// for dir, journal, badger and sqlite backends
	DataDir string `mapstructure:"data_dir"`
	// for journal: call fsync after every write
	SyncWrite bool        `mapstructure:"sync_write"`
	Minio     MinioConfig `mapstructure:"minio"`
}

// Validate checks that config has everything needed to open the backend
func (c *Config) Validate() error {
	switch c.Kind {
	case KindMemory:
		return nil
	case KindDir, KindJournal, KindBadger, KindSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("backend '%s' needs data directory. For current directory, use '.'", c.Kind)
		}
		return nil
	case KindMinio:
		return c.Minio.Validate()
	}
	return fmt.Errorf("unknown backend '%s', must be one of: %s", c.Kind, strings.Join(Kinds, ", "))
}

// Open creates a backend described by config.
// Call Close() when done.
func Open(config *Config) (appendstore.Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dir := config.DataDir
	switch config.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindDir:
		return OpenDir(dir)
	case KindJournal:
		return OpenJournal(&Journal{
			Path:      filepath.Join(dir, "ledger.journal"),
			SyncWrite: config.SyncWrite,
		})
	case KindBadger:
		return OpenBadger(filepath.Join(dir, "badger"))
	case KindSQLite:
		return OpenSQLite(filepath.Join(dir, "ledger.sqlite"))
	case KindMinio:
		return NewMinio(&config.Minio)
	}
	panic("unreachable")
}

// Close closes the backend if it needs closing
func Close(b appendstore.Backend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// validateKey checks that key can be used as a file name, object name
// and journal entry name
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", appendstore.ErrInvalidKey)
	}
	if key == "." || key == ".." {
		return fmt.Errorf("%w: '%s'", appendstore.ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, "/\\ \t\r\n") {
		return fmt.Errorf("%w: '%s' can't contain path separators or whitespace", appendstore.ErrInvalidKey, key)
	}
	return nil
}
