package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/kjk/ledgerstore/appendstore"
	"github.com/kjk/ledgerstore/backend"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultAddr, c.Addr)
	assert.Equal(t, "none", c.Compression)
	assert.Equal(t, DefaultMaxValueSize, c.MaxValueSize)
	assert.Equal(t, backend.KindJournal, c.Backend.Kind)
	assert.Equal(t, "data", c.Backend.DataDir)
	assert.False(t, c.Verbose)
	assert.Equal(t, "http://localhost:8700", c.BaseURL())

	opts, err := c.LedgerOptions()
	assert.NoError(t, err)
	assert.Equal(t, appendstore.CompressionNone, opts.Compression)
	assert.Equal(t, DefaultMaxValueSize, opts.MaxValueSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerd.yaml")
	s := `addr: 127.0.0.1:9000
compression: zstd
pretty_json: true
backend:
  kind: minio
  minio:
    endpoint: localhost:9001
    access: key
    secret: secret
    bucket: ledger
    insecure: true
`
	err := os.WriteFile(path, []byte(s), 0644)
	assert.NoError(t, err)
	c, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", c.Addr)
	assert.True(t, c.PrettyJSON)
	assert.Equal(t, backend.KindMinio, c.Backend.Kind)
	assert.Equal(t, "localhost:9001", c.Backend.Minio.Endpoint)
	assert.Equal(t, "ledger", c.Backend.Minio.Bucket)
	assert.True(t, c.Backend.Minio.Insecure)
	// not in the file
	assert.Equal(t, DefaultMaxValueSize, c.MaxValueSize)

	opts, err := c.LedgerOptions()
	assert.NoError(t, err)
	assert.Equal(t, appendstore.CompressionZstd, opts.Compression)
	assert.True(t, opts.PrettyJSON)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LEDGER_BACKEND_KIND", "sqlite")
	t.Setenv("LEDGER_BACKEND_DATA_DIR", "/var/lib/ledger")
	t.Setenv("LEDGER_MAX_VALUE_SIZE", "1000")
	t.Setenv("LEDGER_ADDR", "https://ledger.example.com")
	c, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, backend.KindSQLite, c.Backend.Kind)
	assert.Equal(t, "/var/lib/ledger", c.Backend.DataDir)
	assert.Equal(t, 1000, c.MaxValueSize)
	assert.Equal(t, "https://ledger.example.com", c.BaseURL())
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("LEDGER_COMPRESSION", "lzma")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("LEDGER_COMPRESSION", "")
	t.Setenv("LEDGER_BACKEND_KIND", "redis")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("LEDGER_BACKEND_KIND", "minio")
	_, err = Load("")
	assert.Error(t, err)
}
