// Package filecrypto implements per-file envelope encryption. Each file key is
// derived from a master secret and the file id, so no key store is needed:
// the key id handed back to callers is a reversible encoding of the file id.
package filecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/travelsidecar/service/internal/domain/model"
)

// ErrCrypto is returned for key derivation, cipher and key id faults.
var ErrCrypto = errors.New("filecrypto: operation failed")

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 100_000
	keyLen     = 32
	ivLen      = aes.BlockSize
	saltPrefix = "travelsidecar/file/"
)

// ShouldEncrypt applies the encryption policy for an upload. Visual assets are
// never encrypted so they stay cacheable; documents and gallery photos always
// are; anything else is encrypted unless it is an image.
func ShouldEncrypt(contentType string, kind model.Kind) bool {
	switch kind {
	case model.KindAvatar, model.KindTripCover, model.KindActivityImage, model.KindWishlistItemImage:
		return false
	case model.KindTripDocument, model.KindActivityDocument, model.KindTripPhoto:
		return true
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// Cipher encrypts and decrypts file streams with keys derived from a master secret.
type Cipher struct {
	secret []byte
}

// NewCipher returns a Cipher for the given master secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty master secret", ErrCrypto)
	}
	return &Cipher{secret: []byte(secret)}, nil
}

// Encrypt wraps r so that reading it yields ciphertext for fileID.
func (c *Cipher) Encrypt(r io.Reader, fileID string) (io.Reader, string, error) {
	stream, err := c.stream(fileID)
	if err != nil {
		return nil, "", err
	}
	return &cipher.StreamReader{S: stream, R: r}, KeyIDFor(fileID), nil
}

// Decrypt wraps r so that reading it yields the plaintext of the file behind keyID.
func (c *Cipher) Decrypt(r io.Reader, keyID string) (io.Reader, error) {
	fileID, err := FileIDFromKeyID(keyID)
	if err != nil {
		return nil, err
	}
	stream, err := c.stream(fileID)
	if err != nil {
		return nil, err
	}
	return &cipher.StreamReader{S: stream, R: r}, nil
}

func (c *Cipher) stream(fileID string) (cipher.Stream, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: empty file id", ErrCrypto)
	}
	key, iv := c.derive(fileID)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return cipher.NewCTR(block, iv), nil
}

// derive returns the AES-256 key and IV for fileID.
func (c *Cipher) derive(fileID string) (key, iv []byte) {
	out := pbkdf2.Key(c.secret, []byte(saltPrefix+fileID), Iterations, keyLen+ivLen, sha256.New)
	return out[:keyLen], out[keyLen:]
}

// KeyIDFor encodes fileID as an opaque key id.
func KeyIDFor(fileID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fileID))
}

// FileIDFromKeyID reverses KeyIDFor.
func FileIDFromKeyID(keyID string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(keyID)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("%w: malformed key id", ErrCrypto)
	}
	return string(raw), nil
}
