// Copyright © 2018 One Concern

package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oneconcern/coldstore/pkg/cafs"
	"github.com/oneconcern/coldstore/pkg/catalog/status"
	"github.com/oneconcern/coldstore/pkg/codec"
	codecstatus "github.com/oneconcern/coldstore/pkg/codec/status"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage"
	"github.com/oneconcern/coldstore/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testCodec(t testing.TB) *codec.Codec {
	t.Helper()
	key, err := codec.GenerateKey()
	require.NoError(t, err)
	c, err := codec.New(key)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func fileEntry(path, content string) Entry {
	return Entry{
		Path:            path,
		Kind:            KindFile,
		Size:            uint64(len(content)),
		ModifiedAt:      time.Date(2021, 3, 4, 5, 6, 7, 891234567, time.UTC),
		ContentChecksum: cafs.Sum([]byte(content)).String(),
	}
}

func TestInsertLookup(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t))

	e := fileEntry("/data/a.txt", "a")
	require.False(t, cat.Exists(e.Path))
	require.NoError(t, cat.Insert(e))
	require.True(t, cat.Exists(e.Path))
	assert.Equal(t, 1, cat.Len())

	got, ok := cat.LookupExact(e.Path)
	require.True(t, ok)
	assert.Equal(t, e.Path, got.Path)
	assert.Equal(t, e.ContentChecksum, got.ContentChecksum)
	assert.Equal(t, e.ModifiedAt.Truncate(time.Microsecond), got.ModifiedAt)

	_, ok = cat.LookupExact("/data/a")
	assert.False(t, ok)
}

func TestInsertUniqueness(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t))

	require.NoError(t, cat.Insert(fileEntry("/x", "first")))
	err := cat.Insert(fileEntry("/x", "second"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrAlreadyExists))

	got, ok := cat.LookupExact("/x")
	require.True(t, ok)
	assert.Equal(t, cafs.Sum([]byte("first")).String(), got.ContentChecksum)
	assert.Equal(t, 1, cat.Len())
}

func TestConcurrentInserts(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inserts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cat.Insert(fileEntry("/same", "content")); err == nil {
				mu.Lock()
				inserts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserts)
	assert.Equal(t, 1, cat.Len())
}

func TestInvalidEntries(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t))

	for name, e := range map[string]Entry{
		"empty path":   {Kind: KindFile, ContentChecksum: cafs.Sum(nil).String()},
		"unknown kind": {Path: "/a", Kind: "device"},
		"no content":   {Path: "/a", Kind: KindFile},
		"both content": {Path: "/a", Kind: KindFile, ContentChecksum: cafs.Sum(nil).String(), ChunkChecksums: []string{cafs.Sum(nil).String()}},
		"bad checksum": {Path: "/a", Kind: KindFile, ContentChecksum: "abcd"},
		"link target":  {Path: "/a", Kind: KindLink},
	} {
		err := cat.Insert(e)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, status.ErrInvalidEntry), name)
	}
	assert.Zero(t, cat.Len())
}

func TestLookupPrefix(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t))

	for _, p := range []string{"/home/u/docs/b", "/home/u/docs/a", "/home/u/music/c", "/home/v/d", "/home/u/docs-old/e"} {
		require.NoError(t, cat.Insert(fileEntry(p, p)))
	}

	paths := func(entries []Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Path)
		}
		return out
	}

	assert.Equal(t, []string{"/home/u/docs-old/e", "/home/u/docs/a", "/home/u/docs/b"}, paths(cat.LookupPrefix("/home/u/docs")))
	assert.Equal(t, []string{"/home/u/docs/a", "/home/u/docs/b"}, paths(cat.LookupPrefix("/home/u/docs/")))
	assert.Len(t, cat.LookupPrefix("/home"), 5)
	assert.Len(t, cat.LookupPrefix(""), 5)
	assert.Empty(t, cat.LookupPrefix("/nowhere"))
}

func TestLookupDoesNotShareMemory(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t))
	chunks := []string{cafs.Sum([]byte("1")).String(), cafs.Sum([]byte("2")).String()}
	require.NoError(t, cat.Insert(Entry{Path: "/big", Kind: KindFile, Size: 2, ChunkChecksums: chunks}))

	chunks[0] = "mutated"
	got, ok := cat.LookupExact("/big")
	require.True(t, ok)
	assert.Equal(t, cafs.Sum([]byte("1")).String(), got.ChunkChecksums[0])

	got.ChunkChecksums[1] = "mutated"
	again, _ := cat.LookupExact("/big")
	assert.Equal(t, cafs.Sum([]byte("2")).String(), again.ChunkChecksums[1])
}

func TestFlushLoad(t *testing.T) {
	ctx := context.Background()
	store := localfs.New(afero.NewMemMapFs())
	c := testCodec(t)

	cat := New(store, c, Logger(zaptest.NewLogger(t)))
	require.NoError(t, cat.Insert(fileEntry("/data/small", "small")))
	require.NoError(t, cat.Insert(Entry{
		Path:           "/data/big",
		Kind:           KindFile,
		Size:           25000,
		ModifiedAt:     time.Now(),
		ChunkChecksums: []string{cafs.Sum([]byte("1")).String(), cafs.Sum([]byte("2")).String(), cafs.Sum([]byte("3")).String()},
	}))
	require.NoError(t, cat.Insert(Entry{
		Path:       "/data/link",
		Kind:       KindLink,
		ModifiedAt: time.Now(),
		LinkTarget: "/data/small",
	}))
	require.NoError(t, cat.Flush(ctx))

	has, err := store.Has(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, has)

	reloaded := New(store, c)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 3, reloaded.Len())

	for _, expected := range cat.LookupPrefix("") {
		got, ok := reloaded.LookupExact(expected.Path)
		require.True(t, ok, expected.Path)
		assert.Equal(t, expected, got)
	}
}

func TestPersistedRecord(t *testing.T) {
	ctx := context.Background()
	store := localfs.New(afero.NewMemMapFs())
	c := testCodec(t)

	cat := New(store, c, Key("custom.catalog"))
	require.NoError(t, cat.Insert(fileEntry("/a", "a")))
	require.NoError(t, cat.Insert(Entry{
		Path:       "/l",
		Kind:       KindLink,
		ModifiedAt: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC),
		LinkTarget: "/a",
	}))
	require.NoError(t, cat.Flush(ctx))

	token, err := storage.ReadAll(ctx, store, "custom.catalog")
	require.NoError(t, err)
	plain, err := c.Decode(token)
	require.NoError(t, err)

	text := string(plain)
	assert.True(t, strings.HasPrefix(text, `{"version":1,"entries":[`), text)
	assert.Contains(t, text, `"modified_at":"2021-03-04T05:06:07.891234"`)
	assert.Contains(t, text, `"type":"file"`)
	assert.Contains(t, text, `"chunk_checksums":[]`)

	// every record carries all columns, empty when not applicable
	assert.Contains(t, text, `"type":"file","modified_at":"2021-03-04T05:06:07.891234","link_target":"","content_checksum":"`)
	assert.Contains(t, text, `"link_target":"/a","content_checksum":"","chunk_checksums":[]`)
}

func TestLoadMissing(t *testing.T) {
	cat := New(localfs.New(afero.NewMemMapFs()), testCodec(t), Logger(zaptest.NewLogger(t)))
	require.NoError(t, cat.Load(context.Background()))
	assert.Zero(t, cat.Len())
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	c := testCodec(t)

	t.Run("wrong key", func(t *testing.T) {
		store := localfs.New(afero.NewMemMapFs())
		require.NoError(t, New(store, testCodec(t)).Flush(ctx))

		err := New(store, c).Load(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrLoad))
		assert.True(t, errors.Is(err, codecstatus.ErrIntegrity))
	})

	for name, content := range map[string]string{
		"not json":  `{"version":`,
		"version":   `{"version":2,"entries":[]}`,
		"bad time":  `{"version":1,"entries":[{"path":"/a","type":"link","link_target":"/b","modified_at":"yesterday"}]}`,
		"bad entry": `{"version":1,"entries":[{"path":"","type":"link","link_target":"/b","modified_at":"2021-03-04T05:06:07.000000"}]}`,
		"duplicate": fmt.Sprintf(`{"version":1,"entries":[%[1]s,%[1]s]}`,
			`{"path":"/a","type":"link","link_target":"/b","modified_at":"2021-03-04T05:06:07.000000"}`),
	} {
		t.Run(name, func(t *testing.T) {
			store := localfs.New(afero.NewMemMapFs())
			token, err := c.Encode([]byte(content))
			require.NoError(t, err)
			require.NoError(t, storage.PutBytes(ctx, store, DefaultKey, token))

			err = New(store, c).Load(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrLoad))
		})
	}
}
