package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"schnitzelbot/internal/subscriber"
)

const sealedPrefix = "sealed:v1:"

var errSealedValue = errors.New("storage: malformed sealed value")

// Sealer encrypts subscriber credentials at rest.
// Values without the sealed prefix are treated as plaintext on Open.
type Sealer struct {
	key []byte
}

// NewSealer derives a 256-bit key from secret.
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("storage: empty secret key")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("schnitzelbot credentials v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext. Already-sealed values are returned unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" || strings.HasPrefix(plaintext, sealedPrefix) {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", errSealedValue
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", errSealedValue
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("storage: open credential: %w", err)
	}
	return string(pt), nil
}

// sealedStore seals credentials on write and opens them on read.
type sealedStore struct {
	Store
	sealer *Sealer
}

func (s *sealedStore) ListSubscribers(ctx context.Context, cursor string, limit int) ([]subscriber.Subscriber, string, error) {
	items, next, err := s.Store.ListSubscribers(ctx, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	for i := range items {
		pt, err := s.sealer.Open(items[i].Credential)
		if err != nil {
			return nil, "", fmt.Errorf("subscriber %s: %w", items[i].ID, err)
		}
		items[i].Credential = pt
	}
	return items, next, nil
}

func (s *sealedStore) PutSubscriber(ctx context.Context, in subscriber.Subscriber) (subscriber.Subscriber, error) {
	plain := in.Credential
	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	in.Credential = sealed
	out, err := s.Store.PutSubscriber(ctx, in)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	out.Credential = plain
	return out, nil
}
