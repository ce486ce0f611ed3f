// Copyright © 2018 One Concern

package cafs

import (
	"crypto/sha512"
	"io"
	"os"
)

// ReadBlockSize is the size of reads when hashing a stream
const ReadBlockSize = 64 * 1024

// HashReader computes the key of all the content of a reader, consumed by blocks of ReadBlockSize
func HashReader(rdr io.Reader) (Key, int64, error) {
	hasher := sha512.New()
	buf := make([]byte, ReadBlockSize)
	n, err := io.CopyBuffer(hasher, onlyReader{rdr}, buf)
	if err != nil {
		return Key{}, n, err
	}
	return MustNewKey(hasher.Sum(nil)), n, nil
}

// HashFile computes the key of the content of a file
func HashFile(path string) (Key, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Key{}, 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	return HashReader(f)
}

// onlyReader hides a WriterTo implementation so that reads honor the block size
type onlyReader struct {
	io.Reader
}
