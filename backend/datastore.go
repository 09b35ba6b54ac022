package backend

import (
	"context"
	"errors"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	badger "github.com/ipfs/go-ds-badger"
)

// Datastore stores each collection under /<key> in an ipfs datastore
type Datastore struct {
	DS ds.Datastore
}

// NewMemory returns a backend that keeps data in memory.
// Data is lost when the process exits.
func NewMemory() *Datastore {
	return &Datastore{
		DS: dssync.MutexWrap(ds.NewMapDatastore()),
	}
}

// OpenBadger opens (or creates) a badger database in dir
func OpenBadger(dir string) (*Datastore, error) {
	opts := badger.DefaultOptions
	bds, err := badger.NewDatastore(dir, &opts)
	if err != nil {
		return nil, err
	}
	return &Datastore{DS: bds}, nil
}

func datastoreKey(key string) ds.Key {
	return ds.KeyWithNamespaces([]string{key})
}

func (d *Datastore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	v, err := d.DS.Get(ctx, datastoreKey(key))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (d *Datastore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	k := datastoreKey(key)
	if err := d.DS.Put(ctx, k, value); err != nil {
		return err
	}
	// for badger: make sure it's on disk before we report success
	return d.DS.Sync(ctx, k)
}

func (d *Datastore) Close() error {
	return d.DS.Close()
}
