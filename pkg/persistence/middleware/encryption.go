package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/ports"
)

// sealedPrefix marks an encrypted field value.
const sealedPrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are old keys tried when the active key fails, so keys
	// can be rotated without rewriting the store first.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.RequestStore
	config EncryptionConfig
}

// NewEncryptionMiddleware encrypts the submitter's contact details with
// AES-GCM before they reach the store. IDs, status and history stay in the
// clear so stores can still index them.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return func(next ports.RequestStore) ports.RequestStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, req *domain.Request) error {
	sealed := req.Clone()
	for _, f := range contactFields(&sealed.Submitter) {
		if *f == "" {
			continue
		}
		ct, err := encrypt([]byte(*f), m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt request %s: %w", req.ID, err)
		}
		*f = sealedPrefix + base64.StdEncoding.EncodeToString(ct)
	}
	return m.next.Save(ctx, sealed)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Request, error) {
	req, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, f := range contactFields(&req.Submitter) {
		// Plain values predate encryption and are rewritten on the next save.
		if !strings.HasPrefix(*f, sealedPrefix) {
			continue
		}
		ct, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(*f, sealedPrefix))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ciphertext of request %s: %w", id, err)
		}
		plain, err := decryptWithRotation(ct, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt request %s: %w", id, err)
		}
		*f = string(plain)
	}
	return req, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func contactFields(c *domain.Contact) []*string {
	return []*string{&c.Name, &c.PropertyAddress, &c.Email, &c.Phone}
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
