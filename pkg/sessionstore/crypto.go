package sessionstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// encryptionMode is a closed enumeration of the Store's encryption
// states.
type encryptionMode int

const (
	modePlaintext encryptionMode = iota
	modeStandard
	modeEnterprise
)

const (
	pbkdf2Iterations = 100_000
	scryptN          = 1 << 15
	scryptR          = 8
	scryptP          = 1
	keyLen           = 32 // AES-256
	saltLen          = 16
)

// modeTags prefix every persisted file so Load can tell plaintext,
// standard, and enterprise containers apart without guessing.
var modeTags = map[encryptionMode][4]byte{
	modePlaintext:  {'P', 'L', 'A', 'I'},
	modeStandard:   {'A', 'E', 'S', '1'},
	modeEnterprise: {'A', 'E', 'S', '2'},
}

func tagForMode(m encryptionMode) [4]byte { return modeTags[m] }

func modeForTag(tag [4]byte) (encryptionMode, bool) {
	for m, t := range modeTags {
		if t == tag {
			return m, true
		}
	}
	return 0, false
}

// deriveKey derives an AES-256 key from password and salt using the KDF
// appropriate to mode.
func deriveKey(mode encryptionMode, password string, salt []byte) []byte {
	switch mode {
	case modeEnterprise:
		key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
		if err != nil {
			// scrypt only fails on invalid parameters, which are fixed
			// constants here; fall back to a PBKDF2 derivation rather than
			// panicking on an unreachable path.
			return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLen, sha256.New)
		}
		return key
	default:
		return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLen, sha256.New)
	}
}

// seal wraps plaintext in a self-describing container for mode:
// [4-byte mode tag][plaintext] for modePlaintext, otherwise
// [4-byte mode tag][salt][nonce][ciphertext] encrypted under password.
func seal(mode encryptionMode, password string, plaintext []byte) ([]byte, error) {
	const op = "sessionstore.seal"
	if mode == modePlaintext {
		tag := tagForMode(mode)
		out := make([]byte, 0, 4+len(plaintext))
		out = append(out, tag[:]...)
		return append(out, plaintext...), nil
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	key := deriveKey(mode, password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	tag := tagForMode(mode)
	out := make([]byte, 0, 4+len(salt)+len(nonce)+len(ciphertext))
	out = append(out, tag[:]...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// openSealed decrypts a container produced by seal. mixedModeAllowed, if
// true, lets a plaintext-tagged payload pass through unmodified instead
// of failing.
func openSealed(password string, data []byte, mixedModeAllowed bool) ([]byte, error) {
	const op = "sessionstore.openSealed"
	if len(data) < 4 {
		return nil, kernelerr.New(op, kernelerr.Corrupted)
	}
	var tag [4]byte
	copy(tag[:], data[:4])

	mode, ok := modeForTag(tag)
	if !ok {
		return nil, kernelerr.New(op, kernelerr.Corrupted)
	}
	if mode == modePlaintext {
		if !mixedModeAllowed {
			return nil, kernelerr.New(op, kernelerr.ValidationError)
		}
		return data[4:], nil
	}

	rest := data[4:]
	if len(rest) < saltLen {
		return nil, kernelerr.New(op, kernelerr.Corrupted)
	}
	salt, rest := rest[:saltLen], rest[saltLen:]
	key := deriveKey(mode, password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	if len(rest) < gcm.NonceSize() {
		return nil, kernelerr.New(op, kernelerr.Corrupted)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	return plaintext, nil
}
