package appendstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

type testRecord struct {
	Kind string
	Size int
	Meta string
}

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

func genRandomRecords(n int) []testRecord {
	records := make([]testRecord, n)
	for i := 0; i < n; i++ {
		records[i] = testRecord{
			Kind: "test_kind_" + string(rune('a'+rng.Intn(26))),
			Size: rng.Intn(1000),
			Meta: "meta " + string(rune('a'+rng.Intn(26))),
		}
		if i%33 == 0 {
			records[i].Meta = ""
		}
	}
	return records
}

// mapBackend is an in-memory Backend that counts calls and can fail on demand
type mapBackend struct {
	m       map[string][]byte
	nGet    int
	nSet    int
	failGet error
	failSet error
}

func newMapBackend() *mapBackend {
	return &mapBackend{m: map[string][]byte{}}
}

func (b *mapBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.nGet++
	if b.failGet != nil {
		return nil, false, b.failGet
	}
	d, ok := b.m[key]
	return d, ok, nil
}

func (b *mapBackend) Set(ctx context.Context, key string, value []byte) error {
	b.nSet++
	if b.failSet != nil {
		return b.failSet
	}
	b.m[key] = append([]byte(nil), value...)
	return nil
}

var ctx = context.Background()

func newTestStore(t *testing.T, key string, b Backend) *Store[testRecord] {
	s, err := New(key, b, JSON[testRecord](), nil)
	assert.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	b := newMapBackend()
	_, err := New("", b, JSON[testRecord](), nil)
	assert.True(t, errors.Is(err, ErrInvalidKey))
	_, err = New[testRecord]("k", nil, JSON[testRecord](), nil)
	assert.Error(t, err)
	_, err = New[testRecord]("k", b, nil, nil)
	assert.Error(t, err)
	_, err = New("k", b, JSON[testRecord](), &Options{MaxValueSize: -1})
	assert.Error(t, err)
}

func TestListAbsentIsEmpty(t *testing.T) {
	b := newMapBackend()
	s := newTestStore(t, "products", b)
	recs, err := s.List(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Len(t, recs, 0)
	assert.Equal(t, 0, b.nSet)
}

func TestAppendGrowsByOne(t *testing.T) {
	s := newTestStore(t, "products", newMapBackend())
	for i, rec := range genRandomRecords(50) {
		before, err := s.List(ctx)
		assert.NoError(t, err)
		err = s.Append(ctx, rec)
		assert.NoError(t, err)
		after, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Equal(t, len(before)+1, len(after), fmt.Sprintf("record %d", i))
		assert.Equal(t, rec, after[len(after)-1])
		assert.Equal(t, before, after[:len(before)])
	}
}

func TestAppendOneReadOneWrite(t *testing.T) {
	b := newMapBackend()
	s := newTestStore(t, "escrows", b)
	err := s.Append(ctx, testRecord{Kind: "a"})
	assert.NoError(t, err)
	assert.Equal(t, 1, b.nGet)
	assert.Equal(t, 1, b.nSet)
}

func TestOrderPreserved(t *testing.T) {
	b := newMapBackend()
	s := newTestStore(t, "escrows", b)
	testRecords := genRandomRecords(300)
	for _, rec := range testRecords {
		assert.NoError(t, s.Append(ctx, rec))
	}
	// a new Store over the same backend sees the same data
	s2 := newTestStore(t, "escrows", b)
	recs, err := s2.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, testRecords, recs)
}

func TestListIdempotent(t *testing.T) {
	b := newMapBackend()
	s := newTestStore(t, "nfts", b)
	assert.NoError(t, s.Append(ctx, testRecord{Kind: "nft", Size: 100}))
	assert.NoError(t, s.Append(ctx, testRecord{Kind: "nft", Size: 200}))
	r1, err := s.List(ctx)
	assert.NoError(t, err)
	r2, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 2, b.nSet)
}

func TestCrossKeyIsolation(t *testing.T) {
	b := newMapBackend()
	proposals := newTestStore(t, "proposals", b)
	nfts := newTestStore(t, "nfts", b)
	assert.NoError(t, proposals.Append(ctx, testRecord{Kind: "proposal"}))
	recs, err := nfts.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, 0)
	_, ok := b.m["nfts"]
	assert.False(t, ok)
}

func TestNoDedup(t *testing.T) {
	s := newTestStore(t, "requests", newMapBackend())
	rec := testRecord{Kind: "dup", Size: 5, Meta: "same"}
	assert.NoError(t, s.Append(ctx, rec))
	assert.NoError(t, s.Append(ctx, rec))
	recs, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, recs[0], recs[1])
}

func TestBackendUnavailable(t *testing.T) {
	b := newMapBackend()
	s := newTestStore(t, "products", b)
	assert.NoError(t, s.Append(ctx, testRecord{Kind: "a"}))

	errHost := errors.New("out of budget")
	b.failGet = errHost
	_, err := s.List(ctx)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
	assert.True(t, errors.Is(err, errHost))
	err = s.Append(ctx, testRecord{Kind: "b"})
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
	assert.Equal(t, 1, b.nSet)

	b.failGet = nil
	b.failSet = errHost
	err = s.Append(ctx, testRecord{Kind: "b"})
	assert.True(t, errors.Is(err, ErrBackendUnavailable))

	// the failed appends had no effect
	b.failSet = nil
	recs, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []testRecord{{Kind: "a"}}, recs)
}

func TestBackendCapacityErrorPassedThrough(t *testing.T) {
	b := newMapBackend()
	b.failSet = fmt.Errorf("value of 1000000 bytes: %w", ErrStorageCapacityExceeded)
	s := newTestStore(t, "products", b)
	err := s.Append(ctx, testRecord{Kind: "a"})
	assert.True(t, errors.Is(err, ErrStorageCapacityExceeded))
	assert.False(t, errors.Is(err, ErrBackendUnavailable))
}

func TestStorageCapacityExceeded(t *testing.T) {
	b := newMapBackend()
	s, err := New("products", b, JSON[testRecord](), &Options{MaxValueSize: 200})
	assert.NoError(t, err)
	n := 0
	for {
		err = s.Append(ctx, testRecord{Kind: "product", Size: n})
		if err != nil {
			break
		}
		n++
		assert.True(t, n < 100, "limit never reached")
	}
	assert.True(t, errors.Is(err, ErrStorageCapacityExceeded))
	assert.True(t, len(b.m["products"]) <= 200)
	recs, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, recs, n)
}

func TestDecodeFailure(t *testing.T) {
	b := newMapBackend()
	b.m["products"] = []byte(`{"not": "a list"}`)
	s := newTestStore(t, "products", b)
	_, err := s.List(ctx)
	assert.True(t, errors.Is(err, ErrDecodeFailure))

	// append must not overwrite data it couldn't read
	err = s.Append(ctx, testRecord{Kind: "a"})
	assert.True(t, errors.Is(err, ErrDecodeFailure))
	assert.Equal(t, `{"not": "a list"}`, string(b.m["products"]))
}

func TestOnAppend(t *testing.T) {
	var gotKey string
	var gotCount int
	opts := &Options{
		OnAppend: func(key string, count int) {
			gotKey = key
			gotCount = count
		},
	}
	s, err := New("deliveries", newMapBackend(), JSON[testRecord](), opts)
	assert.NoError(t, err)
	assert.NoError(t, s.Append(ctx, testRecord{}))
	assert.NoError(t, s.Append(ctx, testRecord{}))
	assert.Equal(t, "deliveries", gotKey)
	assert.Equal(t, 2, gotCount)
}

func TestConcurrentAppend(t *testing.T) {
	const nWorkers = 8
	const perWorker = 50
	b := newMapBackend()
	s := newTestStore(t, "escrows", b)
	errs := make([]error, nWorkers)
	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				rec := testRecord{Kind: fmt.Sprintf("w%d", worker), Size: j}
				if err := s.Append(ctx, rec); err != nil {
					errs[worker] = err
					return
				}
				if _, err := s.List(ctx); err != nil {
					errs[worker] = err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	recs, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Equal(t, nWorkers*perWorker, len(recs))
	assert.Equal(t, nWorkers*perWorker, b.nSet)
	// records of each worker are in the order it appended them
	next := map[string]int{}
	for _, rec := range recs {
		assert.Equal(t, next[rec.Kind], rec.Size)
		next[rec.Kind]++
	}
}
