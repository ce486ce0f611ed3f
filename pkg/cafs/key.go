// Copyright © 2018 One Concern

package cafs

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

const (
	// KeySize for sha512 digests
	KeySize = sha512.Size

	// KeySizeHex for hex representation of a key
	KeySizeHex = 2 * KeySize
)

// NewKey creates a new key from data
func NewKey(data []byte) (Key, error) {
	var k Key
	if len(data) != KeySize {
		return Key{}, &BadKeySize{Key: data}
	}
	copy(k[:], data)
	return k, nil
}

// MustNewKey creates a new key from data but panics if there is an error
func MustNewKey(data []byte) Key {
	k, e := NewKey(data)
	if e != nil {
		panic(e.Error())
	}
	return k
}

// KeyFromString parses the hex representation of a key
func KeyFromString(s string) (Key, error) {
	if len(s) != KeySizeHex {
		return Key{}, &BadKeySize{Key: []byte(s)}
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return NewKey(data)
}

// Sum computes the key addressing some content
func Sum(data []byte) Key {
	return sha512.Sum512(data)
}

// Key type for CAFS keys
type Key [KeySize]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero tells if the key is unset
func (k Key) IsZero() bool {
	return k == Key{}
}

// BadKeySize is an error that's returned when the key to create has an invalid size.
type BadKeySize struct {
	Key []byte
}

func (b *BadKeySize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Key, len(b.Key), KeySize)
}
