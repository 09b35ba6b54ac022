package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/kjk/ledgerstore/ledger"
	"github.com/kjk/ledgerstore/log"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := execute(cmd)
	return out.String(), err
}

func TestGenAddress(t *testing.T) {
	out, err := runCommand(t, "gen-address")
	assert.NoError(t, err)
	s := strings.TrimSpace(out)
	_, err = ledger.ParseAddress(s)
	assert.NoError(t, err)
}

func TestAddList(t *testing.T) {
	t.Setenv("LEDGER_BACKEND_KIND", "sqlite")
	t.Setenv("LEDGER_BACKEND_DATA_DIR", t.TempDir())

	out, err := runCommand(t, "list", "nfts")
	assert.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	owner := ledger.GenerateAddress()
	_, err = runCommand(t, "add", "nfts", `{"owner":"`+owner.String()+`","score":"100"}`)
	assert.NoError(t, err)
	_, err = runCommand(t, "add", "nfts", `{"owner":"`+owner.String()+`","score":200}`)
	assert.NoError(t, err)

	out, err = runCommand(t, "list", "nfts")
	assert.NoError(t, err)
	var nfts []ledger.Nft
	assert.NoError(t, json.Unmarshal([]byte(out), &nfts))
	assert.Equal(t, []ledger.Nft{{Owner: owner, Score: ledger.NewInt128(100)}, {Owner: owner, Score: ledger.NewInt128(200)}}, nfts)

	_, err = runCommand(t, "add", "nfts", `{"owner":"nope"}`)
	assert.Error(t, err)
	_, err = runCommand(t, "list", "users")
	assert.Error(t, err)
	_, err = runCommand(t, "list")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("LEDGER_BACKEND_KIND", "redis")
	_, err := runCommand(t, "list", "nfts")
	assert.Error(t, err)
}

func TestLogsClosedOnError(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("LEDGER_LOG_DIR", logDir)
	t.Setenv("LEDGER_BACKEND_KIND", "sqlite")
	t.Setenv("LEDGER_BACKEND_DATA_DIR", t.TempDir())

	_, err := runCommand(t, "list", "users")
	assert.Error(t, err)

	// log files are closed so this only goes to stdout
	log.Stdout = io.Discard
	defer func() { log.Stdout = os.Stdout }()
	log.Errorf("after close\n")
	files, err := filepath.Glob(filepath.Join(logDir, "errors", "*"))
	assert.NoError(t, err)
	for _, path := range files {
		d, err := os.ReadFile(path)
		assert.NoError(t, err)
		assert.False(t, strings.Contains(string(d), "after close"))
	}
}
