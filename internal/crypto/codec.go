package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
)

const (
	// SealedPrefix tags the current wire format. A rotated key gets a new
	// versioned prefix (enc2:) instead of replacing this one.
	SealedPrefix = "enc:"

	// Placeholder is rendered in place of a body that fails authentication
	Placeholder = "[Encrypted message]"

	legacyDelimiter = ":"
	nonceSize       = 16
	tagSize         = 16
)

var (
	ErrEmptySecret = errors.New("crypto: message encryption secret is empty")
	ErrDecrypt     = errors.New("crypto: cannot open sealed message")
)

// Codec seals and opens message bodies with AES-256-GCM. The key is derived
// once from the server secret; a Codec is immutable and safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCodec derives the key as SHA-256(secret)
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: create GCM: %w", err)
	}
	return &Codec{aead: aead, rand: rand.Reader}, nil
}

// Seal encrypts plaintext into the current wire format. It never blocks a
// write: on failure it returns the input unchanged together with the error,
// so the caller persists plaintext and may report the degradation.
func (c *Codec) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		err = fmt.Errorf("crypto: generate nonce: %w", err)
		logger.Error().Err(err).Msg("message seal failed, storing plaintext")
		return plaintext, err
	}

	// GCM appends the tag; the wire format wants nonce || tag || ciphertext
	out := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := out[:len(out)-tagSize], out[len(out)-tagSize:]

	wire := make([]byte, 0, nonceSize+tagSize+len(ct))
	wire = append(wire, nonce...)
	wire = append(wire, tag...)
	wire = append(wire, ct...)
	return SealedPrefix + base64.StdEncoding.EncodeToString(wire), nil
}

// Open decodes any wire format ever written:
//
//	enc:<base64(nonce|tag|ciphertext)>   current
//	<hex nonce>:<hex tag>:<hex ciphertext> legacy
//	anything else                          stored before encryption existed
//
// A body that looks sealed but does not authenticate yields Placeholder and
// an error wrapping ErrDecrypt. The returned text is always safe to render.
func (c *Codec) Open(wire string) (string, error) {
	if wire == "" {
		return wire, nil
	}

	if strings.HasPrefix(wire, SealedPrefix) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(wire, SealedPrefix))
		if err != nil {
			return Placeholder, fmt.Errorf("%w: base64: %v", ErrDecrypt, err)
		}
		if len(raw) < nonceSize+tagSize {
			return Placeholder, fmt.Errorf("%w: payload too short", ErrDecrypt)
		}
		return c.open(raw[:nonceSize], raw[nonceSize:nonceSize+tagSize], raw[nonceSize+tagSize:])
	}

	if nonce, tag, ctHex, ok := splitLegacy(wire); ok {
		ct, err := hex.DecodeString(ctHex)
		if err != nil {
			return Placeholder, fmt.Errorf("%w: legacy ciphertext hex: %v", ErrDecrypt, err)
		}
		return c.open(nonce, tag, ct)
	}

	return wire, nil
}

func (c *Codec) open(nonce, tag, ct []byte) (string, error) {
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Placeholder, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// SealLegacy writes the hex-delimited format older deployments produced.
// Only data migration tooling and tests need it.
func (c *Codec) SealLegacy(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	out := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := out[:len(out)-tagSize], out[len(out)-tagSize:]
	return strings.Join([]string{hex.EncodeToString(nonce), hex.EncodeToString(tag), hex.EncodeToString(ct)}, legacyDelimiter), nil
}

// splitLegacy recognises the legacy triplet. The nonce and tag segments must
// be well-formed hex of the right length; otherwise the text is treated as
// plaintext that merely contains a colon. Everything after the second
// delimiter is the ciphertext segment and is rejoined as-is.
func splitLegacy(wire string) (nonce, tag []byte, ctHex string, ok bool) {
	parts := strings.Split(wire, legacyDelimiter)
	if len(parts) < 3 {
		return nil, nil, "", false
	}
	if len(parts[0]) != nonceSize*2 || len(parts[1]) != tagSize*2 {
		return nil, nil, "", false
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, "", false
	}
	tag, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, "", false
	}
	return nonce, tag, strings.Join(parts[2:], legacyDelimiter), true
}
