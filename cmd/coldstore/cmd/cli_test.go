// Copyright © 2018 One Concern

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/coldstore/pkg/catalog"
	"github.com/oneconcern/coldstore/pkg/codec"
	"github.com/oneconcern/coldstore/pkg/crawler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func patchFatal(t *testing.T) {
	t.Helper()
	fatalln, fatalf := logFatalln, logFatalf
	logFatalln = func(args ...interface{}) {
		t.Fatal(args...)
	}
	logFatalf = func(format string, args ...interface{}) {
		t.Fatalf(format, args...)
	}
	t.Cleanup(func() {
		logFatalln, logFatalf = fatalln, fatalf
	})
}

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestKeyGenerate(t *testing.T) {
	patchFatal(t)
	out := runCmd(t, "key", "generate")
	_, err := codec.ParseKey(strings.TrimSpace(out))
	require.NoError(t, err)
}

func TestConfigGenerate(t *testing.T) {
	patchFatal(t)
	file := filepath.Join(t.TempDir(), "coldstore.yaml")
	runCmd(t, "config", "generate", "--file", file)

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	var settings map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &settings))
	assert.Equal(t, "s3", settings["store"])
	assert.Equal(t, "<s3 bucket name>", settings["s3-bucket"])

	key, ok := settings["encryption-token"].(string)
	require.True(t, ok)
	_, err = codec.ParseKey(key)
	require.NoError(t, err)

	params.config.file = ""
}

func TestUploadRestore(t *testing.T) {
	patchFatal(t)
	key, err := codec.GenerateKey()
	require.NoError(t, err)

	base := t.TempDir()
	objects := filepath.Join(base, "objects")
	source := filepath.Join(base, "source")
	restored := filepath.Join(base, "restored")

	t.Setenv("COLDSTORE_STORE", "localfs")
	t.Setenv("COLDSTORE_LOCALFS_PATH", objects)
	t.Setenv("COLDSTORE_ENCRYPTION_TOKEN", key)
	t.Setenv("COLDSTORE_CHUNK_SIZE", "1KiB")
	t.Setenv("COLDSTORE_LOG_LEVEL", "none")

	contents := map[string][]byte{
		"small.txt":      []byte("small"),
		"sub/big.bin":    bytes.Repeat([]byte("0123456789"), 500),
		"sub/deep/x.txt": []byte("x"),
	}
	for name, data := range contents {
		writeFile(t, filepath.Join(source, name), data)
	}

	runCmd(t, "upload", source)
	_, err = os.Stat(filepath.Join(objects, catalog.DefaultKey))
	require.NoError(t, err, "the catalog is flushed")

	runCmd(t, "restore", "--output", restored, source)
	for name, data := range contents {
		got, err := os.ReadFile(filepath.Join(restored, "source", name))
		require.NoError(t, err, name)
		assert.Equal(t, data, got, name)
	}

	// a second upload finds everything in the catalog
	runCmd(t, "upload", source)
}

func TestExportMetadata(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("f%d", i)), []byte{byte(i)})
	}

	var out bytes.Buffer
	count, err := exportMetadata(context.Background(), crawler.New(), root, &out)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	scanner := bufio.NewScanner(&out)
	lines := 0
	for scanner.Scan() {
		var doc map[string]interface{}
		require.NoError(t, jsoniter.Unmarshal(scanner.Bytes(), &doc))
		assert.Equal(t, filepath.Join(root, fmt.Sprintf("f%d", lines)), doc["path"])
		assert.Len(t, doc["checksum"], 128)
		lines++
	}
	assert.Equal(t, 5, lines)
}
