package cafs

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha512 of "hello world"
const testKey = "309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f"

func TestKey_FailsOnIncorrectSize(t *testing.T) {
	data1 := make([]byte, 63)
	data2 := make([]byte, 64)

	_, err := rand.Read(data1)
	require.NoError(t, err)
	_, err = rand.Read(data2)
	require.NoError(t, err)

	_, err = NewKey(data1)
	require.Error(t, err)

	_, err = NewKey(append(data2, 0))
	require.Error(t, err)

	k, err := NewKey(data2)
	require.NoError(t, err)
	assert.Len(t, k, 64)

	assert.Panics(t, func() { MustNewKey(data1) })
	assert.NotPanics(t, func() { MustNewKey(data2) })
}

func TestKey_Succeeds(t *testing.T) {
	data, err := hex.DecodeString(testKey)
	require.NoError(t, err)

	key, err := NewKey(data)
	require.NoError(t, err)
	assert.Equal(t, testKey, key.String())
	assert.Len(t, key.String(), KeySizeHex)
	assert.Equal(t, key, Sum([]byte("hello world")))
	assert.False(t, key.IsZero())
	assert.True(t, Key{}.IsZero())

	parsed, err := KeyFromString(testKey)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = KeyFromString(testKey[:10])
	require.Error(t, err)

	_, err = KeyFromString("zz" + testKey[2:])
	require.Error(t, err)
}

func TestHashReader(t *testing.T) {
	data := make([]byte, 3*ReadBlockSize+17)
	_, err := rand.Read(data)
	require.NoError(t, err)

	key, n, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, len(data), n)
	assert.Equal(t, Key(sha512.Sum512(data)), key)

	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0600))

	fkey, fn, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, key, fkey)
	assert.Equal(t, n, fn)

	_, _, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
