// Copyright © 2018 One Concern

/*
Package codec transforms plaintext into durable encrypted tokens and back.

Encoding compresses with zstd at its best compression level, then seals the
compressed bytes into an authenticated token with the following layout:

	+---------+----------------+---------+-----------------------------+-------------+
	| version | timestamp      | IV      | ciphertext                  | HMAC        |
	| 1 byte  | 8 bytes, BE    | 16 bytes| AES-128-CBC, PKCS7 padded   | 32 bytes    |
	+---------+----------------+---------+-----------------------------+-------------+

The HMAC-SHA256 tag covers every byte before it. This is the Fernet token layout:
its canonical text form is the base64url armor of these bytes. Stores persist the raw
bytes, which is about 25% smaller than the text form.

The key is 32 bytes, base64url encoded: the first half signs, the second half encrypts.
*/
package codec
