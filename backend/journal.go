package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kjk/common/siser"
	"github.com/kjk/ledgerstore/log"
)

type span struct {
	off  int64
	size int64
}

// Journal stores all collections in a single append-only file of siser
// records. Every Set appends a record named with the key, the latest
// record for a key is its current value.
// An interrupted write leaves a truncated entry at the end of the file,
// which is discarded when the journal is opened.
type Journal struct {
	Path string
	// if true, will call file.Sync() after every write
	SyncWrite bool

	file *os.File
	// position of latest value for each key
	index map[string]span
	// size of valid data in the file, the next entry is written here
	size     int64
	nEntries int
	mu       sync.Mutex
}

// OpenJournal opens j.Path, creating it if it doesn't exist, and
// indexes existing entries
func OpenJournal(j *Journal) (*Journal, error) {
	if j.Path == "" {
		return nil, fmt.Errorf("journal path is not set")
	}
	var err error
	j.Path, err = filepath.Abs(j.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for journal file: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(j.Path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(j.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err = j.readIndex(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read journal '%s': %w", j.Path, err)
	}
	j.file = f
	log.Verbosef("journal: opened '%s', %d entries, %d keys, %d bytes\n", j.Path, j.nEntries, len(j.index), j.size)
	return j, nil
}

func (j *Journal) readIndex(f *os.File) error {
	j.index = map[string]span{}
	j.nEntries = 0
	st, err := f.Stat()
	if err != nil {
		return err
	}
	r := siser.NewReader(bufio.NewReader(f))
	for r.ReadNextData() {
		size := int64(len(r.Data))
		// siser adds '\n' after data that doesn't end with it
		end := r.NextRecordPos
		if size > 0 && r.Data[size-1] != '\n' {
			end--
		}
		j.index[r.Name] = span{off: end - size, size: size}
		j.nEntries++
	}
	j.size = r.NextRecordPos
	err = r.Err()
	// EOF errors mean the last record is incomplete
	reachedEnd := err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	if !reachedEnd {
		return fmt.Errorf("bad record at offset %d: %w", r.CurrRecordPos, err)
	}
	if j.size < st.Size() {
		log.Logf("journal: '%s': incomplete record, discarding %d bytes after offset %d\n", j.Path, st.Size()-j.size, j.size)
		return f.Truncate(j.size)
	}
	return nil
}

func (j *Journal) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil, false, os.ErrClosed
	}
	sp, ok := j.index[key]
	if !ok {
		return nil, false, nil
	}
	d := make([]byte, sp.size)
	if _, err := j.file.ReadAt(d, sp.off); err != nil {
		if err == io.EOF {
			return nil, false, fmt.Errorf("journal '%s': entry for '%s' at offset %d is past end of file", j.Path, key, sp.off)
		}
		return nil, false, err
	}
	return d, true, nil
}

func (j *Journal) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := siser.MarshalLine(key, time.Now(), value, nil)
	hdrLen := int64(bytes.IndexByte(entry, '\n') + 1)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	_, err := j.file.WriteAt(entry, j.size)
	if err == nil && j.SyncWrite {
		err = j.file.Sync()
	}
	if err != nil {
		// remove partially written entry so that the next write starts clean
		_ = j.file.Truncate(j.size)
		return err
	}
	j.index[key] = span{off: j.size + hdrLen, size: int64(len(value))}
	j.size += int64(len(entry))
	j.nEntries++
	return nil
}

// Close closes the journal file. Calling Close() twice is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
