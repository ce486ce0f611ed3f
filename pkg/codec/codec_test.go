// Copyright © 2018 One Concern

package codec

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"testing"
	"time"

	"github.com/oneconcern/coldstore/pkg/codec/status"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reference vector from the fernet specification
const (
	fernetSecret = "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4="
	fernetToken  = "gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA=="
	fernetNow    = 499162800
)

func testCodec(t testing.TB, opts ...Option) *Codec {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := New(key, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := testCodec(t)

	random := make([]byte, 10000)
	_, err := rand.Read(random)
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"random":       random,
		"empty":        {},
		"nil":          nil,
		"one byte":     {0x42},
		"block":        bytes.Repeat([]byte{0x10}, 16),
		"compressible": bytes.Repeat([]byte("coldstore "), 100000),
	} {
		token, err := c.Encode(data)
		require.NoError(t, err, name)

		out, err := c.Decode(token)
		require.NoError(t, err, name)
		require.NotNil(t, out, name)
		assert.True(t, bytes.Equal(data, out), name)
	}
}

func TestCompresses(t *testing.T) {
	c := testCodec(t)
	data := bytes.Repeat([]byte("coldstore "), 100000)

	token, err := c.Encode(data)
	require.NoError(t, err)
	assert.Less(t, len(token), len(data)/100)
}

func TestTokenLayout(t *testing.T) {
	now := time.Date(2020, 2, 20, 10, 30, 0, 0, time.UTC)
	c := testCodec(t, Clock(func() time.Time { return now }))

	token, err := c.Encode([]byte("some content to seal"))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(token), MinTokenSize)
	assert.Equal(t, Version, token[0])
	assert.Equal(t, uint64(now.Unix()), binary.BigEndian.Uint64(token[1:9]))
	assert.Zero(t, (len(token)-headerSize-tagSize)%16, "ciphertext is block aligned")

	ts, err := Timestamp(token)
	require.NoError(t, err)
	assert.Equal(t, now, ts)

	mac := hmac.New(sha256.New, c.keys.sign)
	_, _ = mac.Write(token[:len(token)-tagSize])
	assert.Equal(t, mac.Sum(nil), token[len(token)-tagSize:])

	// two encodings of the same content differ by their IV
	again, err := c.Encode([]byte("some content to seal"))
	require.NoError(t, err)
	assert.NotEqual(t, token[9:25], again[9:25])
}

func TestFernetVector(t *testing.T) {
	raw, err := ParseKey(fernetSecret)
	require.NoError(t, err)
	k, err := newKeys(raw)
	require.NoError(t, err)

	expected, err := Unarmor(fernetToken)
	require.NoError(t, err)

	iv := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	token, err := k.seal([]byte("hello"), time.Unix(fernetNow, 0), bytes.NewReader(iv))
	require.NoError(t, err)
	assert.Equal(t, expected, token)
	assert.Equal(t, fernetToken, Armor(token))

	plain, err := k.open(expected)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestTamperDetection(t *testing.T) {
	c := testCodec(t)
	token, err := c.Encode([]byte("tamper with me"))
	require.NoError(t, err)

	for i := range token {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), token...)
			tampered[i] ^= 1 << bit

			out, err := c.Decode(tampered)
			require.Error(t, err, "byte %d bit %d", i, bit)
			require.Nil(t, out)
			require.True(t, errors.Is(err, status.ErrIntegrity), "byte %d bit %d: %v", i, bit, err)
		}
	}
}

func TestTruncatedToken(t *testing.T) {
	c := testCodec(t)
	token, err := c.Encode([]byte("short"))
	require.NoError(t, err)

	for _, cut := range [][]byte{nil, {}, token[:1], token[:MinTokenSize-1], token[:len(token)-1]} {
		_, err := c.Decode(cut)
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrIntegrity))
	}
}

func TestUnknownVersion(t *testing.T) {
	c := testCodec(t)
	token, err := c.Encode([]byte("from the future"))
	require.NoError(t, err)

	// an authentic token with another version
	token[0] = 0x81
	mac := hmac.New(sha256.New, c.keys.sign)
	_, _ = mac.Write(token[:len(token)-tagSize])
	copy(token[len(token)-tagSize:], mac.Sum(nil))

	_, err = c.Decode(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrFormat))
	assert.False(t, errors.Is(err, status.ErrIntegrity))
}

func TestWrongKey(t *testing.T) {
	c1 := testCodec(t)
	c2 := testCodec(t)

	token, err := c1.Encode([]byte("secret"))
	require.NoError(t, err)

	_, err = c2.Decode(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrIntegrity))
}

func TestArmor(t *testing.T) {
	c := testCodec(t)
	data := make([]byte, 4096)
	_, err := rand.Read(data)
	require.NoError(t, err)

	text, err := c.EncodeText(data)
	require.NoError(t, err)

	out, err := c.DecodeText(text)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	raw, err := Unarmor(text)
	require.NoError(t, err)
	assert.Equal(t, text, Armor(raw))
	assert.InDelta(t, 0.75, float64(len(raw))/float64(len(text)), 0.01)

	_, err = Unarmor("not base64 !!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrIntegrity))
}

func TestKeys(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	raw, err := ParseKey(key)
	require.NoError(t, err)
	assert.Len(t, raw, KeySize)

	// unpadded keys are accepted
	_, err = ParseKey(key[:len(key)-1])
	require.NoError(t, err)

	for _, bad := range []string{"", "short", "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSb", "***"} {
		_, err = New(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, status.ErrInvalidKey), bad)
	}

	_, err = NewWithRawKey(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidKey))
}
