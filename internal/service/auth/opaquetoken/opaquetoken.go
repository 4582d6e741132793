// Package opaquetoken issues and parses the opaque tokens handed to clients
// as refresh and password reset credentials.
//
// The wire form is "<recordID>.<secret>". The record id is the primary key of
// the stored row, so verification is a single fetch plus one adaptive cost
// digest compare instead of a scan over every active token. Only the digest
// of the secret part is ever persisted.
package opaquetoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/apperrors"
)

// secret part length in bytes, 128 bits of entropy
const secretLen = 16

// Hasher produces and checks one way digests of token secrets
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hashed string, secret string) error
}

// Token holds everything about a freshly issued opaque token
// Plaintext is returned to the caller exactly once and never stored
type Token struct {
	ID        uuid.UUID
	Plaintext string
	Digest    string
}

func Issue(hasher Hasher) (Token, error) {
	b := make([]byte, secretLen)
	if _, err := rand.Read(b); err != nil {
		return Token{}, fmt.Errorf("error while generating token secret. Err: %w", err)
	}
	secret := hex.EncodeToString(b)

	digest, err := hasher.Hash(secret)
	if err != nil {
		return Token{}, fmt.Errorf("error while hashing token secret. Err: %w", err)
	}

	id := uuid.New()
	return Token{
		ID:        id,
		Plaintext: id.String() + "." + secret,
		Digest:    digest,
	}, nil
}

// Parse splits a presented token into record id and secret
// Malformed input maps to apperrors.ErrTokenNotFound: the caller must not
// be able to tell a garbage token from a revoked one
func Parse(plaintext string) (uuid.UUID, string, error) {
	idPart, secret, ok := strings.Cut(plaintext, ".")
	if !ok || secret == "" {
		return uuid.Nil, "", apperrors.ErrTokenNotFound
	}

	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", apperrors.ErrTokenNotFound
	}

	return id, secret, nil
}
