// Package crypto seals account backups with a passphrase for storage at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the OWASP-recommended minimum for PBKDF2-HMAC-SHA256.
	DefaultIterations = 480_000
	saltLen           = 16
	aesKeyLen         = 32
	sealedVersion     = 1
)

// ErrOpen is returned when a sealed blob cannot be decrypted.
var ErrOpen = errors.New("crypto: cannot open sealed data")

// sealedJSON is the stored format of a sealed payload.
type sealedJSON struct {
	Version    int    `json:"version"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Sealer encrypts payloads with PBKDF2-HMAC-SHA256 key derivation and
// AES-256-GCM. Each Seal uses a fresh salt and nonce.
type Sealer struct {
	passphrase []byte
	iterations int
}

// NewSealer creates a Sealer. A non-positive iterations uses
// DefaultIterations.
func NewSealer(passphrase string, iterations int) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: passphrase must not be empty")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Sealer{passphrase: []byte(passphrase), iterations: iterations}, nil
}

// Seal encrypts plaintext and returns the JSON-encoded sealed form.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := s.aead(salt, s.iterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	return json.Marshal(sealedJSON{
		Version:    sealedVersion,
		Iterations: s.iterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	})
}

// Open decrypts a payload produced by Seal. The iteration count recorded in
// the payload is honoured so older archives stay readable.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	var stored sealedJSON
	if err := json.Unmarshal(sealed, &stored); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrOpen, err)
	}
	if stored.Version != sealedVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrOpen, stored.Version)
	}
	if stored.Iterations <= 0 {
		stored.Iterations = DefaultIterations
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrOpen, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrOpen, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrOpen, err)
	}

	gcm, err := s.aead(salt, stored.Iterations)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrOpen, len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupted data", ErrOpen)
	}
	return plaintext, nil
}

func (s *Sealer) aead(salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
