// Copyright © 2018 One Concern

package codec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/oneconcern/coldstore/pkg/codec/status"
)

// Codec compresses then encrypts content, and reverses the transform.
//
// A Codec is safe for concurrent use.
type Codec struct {
	keys    *keys
	level   zstd.EncoderLevel
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	clock   func() time.Time
	random  io.Reader
}

// Option configures a Codec
type Option func(*Codec)

// Level sets the zstd encoder level. Defaults to zstd.SpeedBestCompression.
func Level(level zstd.EncoderLevel) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// Clock sets the source of token timestamps
func Clock(clock func() time.Time) Option {
	return func(c *Codec) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Random sets the source of initialization vectors. Defaults to crypto/rand.
func Random(random io.Reader) Option {
	return func(c *Codec) {
		if random != nil {
			c.random = random
		}
	}
}

// GenerateKey returns some fresh, base64url encoded key material
func GenerateKey() (string, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// New builds a codec from base64url encoded key material
func New(key string, opts ...Option) (*Codec, error) {
	raw, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return NewWithRawKey(raw, opts...)
}

// NewWithRawKey builds a codec from 32 bytes of raw key material
func NewWithRawKey(raw []byte, opts ...Option) (*Codec, error) {
	k, err := newKeys(raw)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		keys:   k,
		level:  zstd.SpeedBestCompression,
		clock:  time.Now,
		random: rand.Reader,
	}
	for _, apply := range opts {
		apply(c)
	}

	c.encoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(c.level),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	c.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return c, nil
}

// Encode compresses and encrypts plaintext into a raw token
func (c *Codec) Encode(plaintext []byte) ([]byte, error) {
	compressed := c.encoder.EncodeAll(plaintext, nil)
	return c.keys.seal(compressed, c.clock(), c.random)
}

// Decode authenticates, decrypts and decompresses a raw token.
//
// Errors match status.ErrIntegrity when the token is not authentic, and
// status.ErrFormat when an authentic token cannot be interpreted.
func (c *Codec) Decode(token []byte) ([]byte, error) {
	compressed, err := c.keys.open(token)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, status.ErrFormat.Wrap(err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncodeText produces the canonical text form of a token
func (c *Codec) EncodeText(plaintext []byte) (string, error) {
	token, err := c.Encode(plaintext)
	if err != nil {
		return "", err
	}
	return Armor(token), nil
}

// DecodeText decodes the canonical text form of a token
func (c *Codec) DecodeText(text string) ([]byte, error) {
	token, err := Unarmor(text)
	if err != nil {
		return nil, err
	}
	return c.Decode(token)
}

// Close releases the resources held by the zstd decoder
func (c *Codec) Close() {
	c.decoder.Close()
}
