// Copyright © 2018 One Concern

// Package cafs defines the content keys used to address objects on a store.
//
// A key is the SHA-512 digest of the plaintext bytes it addresses, rendered as
// 128 lowercase hex characters when used as a store key.
package cafs
