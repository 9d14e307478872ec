package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/awinterman/anarchoresp/capture"
)

func writeFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "appendonly.aof")
	assert.NilError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestRun_Text(t *testing.T) {
	path := writeFile(t, "*2\r\n$6\r\nSELECT\r\n$1\r\n0\r\n*3\r\n$3\r\nset\r\n$1\r\nk\r\n$1\r\nv\r\n")

	var out bytes.Buffer
	err := run(context.Background(), Args{Path: path, Format: "text"}, &out)

	assert.NilError(t, err)
	assert.Equal(t, out.String(), "*[$\"SELECT\" $\"0\"]\n*[$\"set\" $\"k\" $\"v\"]\n")
}

func TestRun_Raw(t *testing.T) {
	path := writeFile(t, ":1\r\n_\r\n")

	var out bytes.Buffer
	err := run(context.Background(), Args{Path: path, Format: "raw"}, &out)

	assert.NilError(t, err)
	assert.Equal(t, out.String(), "\":1\\r\\n\"\n\"_\\r\\n\"\n")
}

func TestRun_Spew(t *testing.T) {
	path := writeFile(t, "#t\r\n")

	var out bytes.Buffer
	err := run(context.Background(), Args{Path: path, Format: "spew"}, &out)

	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(out.String(), "Bool: (bool) true"), out.String())
}

func TestRun_ReportsOffset(t *testing.T) {
	path := writeFile(t, "+OK\r\n*2\r\n:1\r\n?\r\n")

	var out bytes.Buffer
	err := run(context.Background(), Args{Path: path, Format: "text"}, &out)

	assert.ErrorContains(t, err, "frame 2 at offset 13")
	assert.Equal(t, out.String(), "+OK\n")
}

func TestRun_Truncated(t *testing.T) {
	path := writeFile(t, "+OK\r\n$10\r\nabc")

	err := run(context.Background(), Args{Path: path, Format: "text"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "frame 2 at offset 5")
}

func TestRun_UnknownFormat(t *testing.T) {
	err := run(context.Background(), Args{Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestRun_Badger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := capture.OpenBadger(dir, nil)
	assert.NilError(t, err)
	rec := capture.NewRecorder(store, "client-1")
	assert.NilError(t, rec.Record(ctx, []byte("*1\r\n$4\r\nPING\r\n")))
	assert.NilError(t, rec.Record(ctx, []byte("*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n")))
	assert.NilError(t, store.Close())

	var out bytes.Buffer
	err = run(ctx, Args{Badger: dir, Stream: "client-1", Format: "text"}, &out)

	assert.NilError(t, err)
	assert.Equal(t, out.String(), "client-1#1 *[$\"PING\"]\nclient-1#2 *[$\"ECHO\" $\"hi\"]\n")
}

func TestRun_Wire(t *testing.T) {
	input := "*1\r\n$4\r\nPING\r\n%1\r\n+k\r\n:1\r\n"
	path := writeFile(t, input)

	var out bytes.Buffer
	err := run(context.Background(), Args{Path: path, Format: "wire"}, &out)

	assert.NilError(t, err)
	assert.Equal(t, out.String(), input)
}

func TestRun_BadgerWire(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := capture.OpenBadger(dir, nil)
	assert.NilError(t, err)
	rec := capture.NewRecorder(store, "client-1")
	assert.NilError(t, rec.Record(ctx, []byte("*1\r\n$4\r\nPING\r\n")))
	assert.NilError(t, rec.Record(ctx, []byte("+OK\r\n+OK\r\n")))
	assert.NilError(t, store.Close())

	var out bytes.Buffer
	err = run(ctx, Args{Badger: dir, Stream: "client-1", Format: "wire"}, &out)

	assert.ErrorContains(t, err, "stream client-1 seq 2")
	assert.Equal(t, out.String(), "*1\r\n$4\r\nPING\r\n")
}
