// MIT License
//
// Copyright (c) 2025 vHive team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vhive-serverless/powersweep/storage"
)

type record struct {
	Date    time.Time   `json:"date"`
	Threads []int       `json:"threads"`
	Freqs   map[int]int `json:"freqs"`
}

func TestFileStorageFormats(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStorage()
	ctx := context.Background()

	in := record{
		Date:    time.Date(2024, 3, 1, 10, 30, 0, 123, time.UTC),
		Threads: []int{1, 2, 4},
		Freqs:   map[int]int{0: 1800000, 1: 2400000},
	}

	for _, name := range []string{"out.json", "out.cbor", "out.json.zst", "out.cbor.zst"} {
		path := filepath.Join(dir, "nested", "dirs", name)
		require.NoError(t, store.Save(ctx, path, in), "Failed saving %s", name)

		var out record
		require.NoError(t, store.Load(ctx, path, &out), "Failed loading %s", name)
		require.True(t, in.Date.Equal(out.Date), "Date changed in %s", name)
		require.Equal(t, in.Threads, out.Threads)
		require.Equal(t, in.Freqs, out.Freqs)
	}
}

func TestCompressionIsApplied(t *testing.T) {
	plain, err := storage.Marshal("r.json", record{Threads: make([]int, 512)})
	require.NoError(t, err)
	packed, err := storage.Marshal("r.json.zst", record{Threads: make([]int, 512)})
	require.NoError(t, err)

	require.Less(t, len(packed), len(plain))
}

func TestFileStorageLoadMissing(t *testing.T) {
	var out record
	err := storage.NewFileStorage().Load(context.Background(), filepath.Join(t.TempDir(), "none.json"), &out)
	require.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := storage.New(storage.Config{})
	require.NoError(t, err)
	require.IsType(t, &storage.FileStorage{}, store)
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "result.json")
	require.NoError(t, storage.NewFileStorage().Save(context.Background(), path, record{}))

	_, err := os.Stat(path)
	require.NoError(t, err)
}
