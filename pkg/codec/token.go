// Copyright © 2018 One Concern

package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oneconcern/coldstore/pkg/codec/status"
)

const (
	// Version is the only token format version produced and accepted
	Version byte = 0x80

	// KeySize is the size of the raw key material
	KeySize = 32

	versionSize   = 1
	timestampSize = 8
	ivSize        = aes.BlockSize
	tagSize       = sha256.Size
	headerSize    = versionSize + timestampSize + ivSize

	// MinTokenSize is the size of a token with exactly one block of ciphertext
	MinTokenSize = headerSize + aes.BlockSize + tagSize
)

// keys holds the signing and encryption halves of the key material
type keys struct {
	sign    []byte
	encrypt []byte
	block   cipher.Block
}

func newKeys(raw []byte) (*keys, error) {
	if len(raw) != KeySize {
		return nil, status.ErrInvalidKey.WrapMessage(fmt.Sprintf("expected %d bytes, got %d", KeySize, len(raw)))
	}
	k := &keys{
		sign:    append([]byte(nil), raw[:KeySize/2]...),
		encrypt: append([]byte(nil), raw[KeySize/2:]...),
	}
	block, err := aes.NewCipher(k.encrypt)
	if err != nil {
		return nil, status.ErrInvalidKey.Wrap(err)
	}
	k.block = block
	return k, nil
}

// ParseKey decodes base64url key material. Padding is optional.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	raw, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(key)
		if err != nil {
			return nil, status.ErrInvalidKey.Wrap(err)
		}
	}
	if len(raw) != KeySize {
		return nil, status.ErrInvalidKey.WrapMessage(fmt.Sprintf("expected %d bytes, got %d", KeySize, len(raw)))
	}
	return raw, nil
}

// seal encrypts and signs a payload
func (k *keys) seal(payload []byte, now time.Time, random io.Reader) ([]byte, error) {
	padded := pkcs7Pad(payload, aes.BlockSize)

	token := make([]byte, headerSize+len(padded)+tagSize)
	token[0] = Version
	binary.BigEndian.PutUint64(token[versionSize:], uint64(now.Unix()))

	iv := token[versionSize+timestampSize : headerSize]
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	ciphertext := token[headerSize : headerSize+len(padded)]
	cipher.NewCBCEncrypter(k.block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, k.sign)
	_, _ = mac.Write(token[:headerSize+len(padded)])
	copy(token[headerSize+len(padded):], mac.Sum(nil))

	return token, nil
}

// open verifies and decrypts a token.
//
// The tag is verified before anything else is interpreted, so that any alteration
// of the token, including its version byte, is reported as an integrity failure.
func (k *keys) open(token []byte) ([]byte, error) {
	if len(token) < MinTokenSize {
		return nil, status.ErrIntegrity.WrapMessage(fmt.Sprintf("token too short: %d bytes", len(token)))
	}

	signed, tag := token[:len(token)-tagSize], token[len(token)-tagSize:]
	mac := hmac.New(sha256.New, k.sign)
	_, _ = mac.Write(signed)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, status.ErrIntegrity.WrapMessage("signature mismatch")
	}

	if signed[0] != Version {
		return nil, status.ErrFormat.WrapMessage(fmt.Sprintf("version 0x%02x", signed[0]))
	}

	ciphertext := signed[headerSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, status.ErrFormat.WrapMessage("ciphertext is not a multiple of the block size")
	}

	iv := signed[versionSize+timestampSize : headerSize]
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(k.block, iv).CryptBlocks(plain, ciphertext)

	return pkcs7Unpad(plain, aes.BlockSize)
}

// Timestamp returns the creation time recorded in a raw token, without verifying it
func Timestamp(token []byte) (time.Time, error) {
	if len(token) < headerSize {
		return time.Time{}, status.ErrFormat.WrapMessage("token too short")
	}
	secs := binary.BigEndian.Uint64(token[versionSize:headerSize])
	return time.Unix(int64(secs), 0).UTC(), nil
}

// Armor renders a raw token in its canonical base64url text form
func Armor(token []byte) string {
	return base64.URLEncoding.EncodeToString(token)
}

// Unarmor decodes the canonical text form of a token back to raw bytes
func Unarmor(text string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, status.ErrIntegrity.Wrap(err)
	}
	return raw, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	copy(padded[len(data):], bytes.Repeat([]byte{byte(n)}, n))
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, status.ErrFormat.WrapMessage("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, status.ErrFormat.WrapMessage("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, status.ErrFormat.WrapMessage("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
