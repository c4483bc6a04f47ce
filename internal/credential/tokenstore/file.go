package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is an on-disk Store. Each provider's token is encrypted with
// AES-256-CBC under a key derived from a passphrase file via SHA-256, and
// written as "<ivHex>:<ciphertextHex>" (spec.md §6's exact wire format). No
// library in the retrieved corpus offers this primitive in that literal
// format, so this one file uses crypto/aes and crypto/cipher directly
// (see DESIGN.md).
type File struct {
	dir string
	key [32]byte
}

// NewFile reads the passphrase at keyFilePath and derives an AES-256 key
// from it. dir is created with mode 0700 if it does not already exist.
func NewFile(dir, keyFilePath string) (*File, error) {
	passphrase, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read encryption key file: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: create dir: %w", err)
	}
	return &File{dir: dir, key: sha256.Sum256(passphrase)}, nil
}

func (f *File) path(provider string) string {
	return filepath.Join(f.dir, provider+".token")
}

func (f *File) Get(provider string) (string, bool, error) {
	raw, err := readFileScoped(f.dir, provider+".token")
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	parts := strings.SplitN(strings.TrimSpace(string(raw)), ":", 2)
	if len(parts) != 2 {
		return "", false, fmt.Errorf("tokenstore: malformed token file for %s", provider)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", false, fmt.Errorf("tokenstore: decode iv: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", false, fmt.Errorf("tokenstore: decode ciphertext: %w", err)
	}
	plain, err := f.decrypt(iv, ciphertext)
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

func (f *File) Put(provider, token string) error {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return fmt.Errorf("tokenstore: generate iv: %w", err)
	}
	ciphertext, err := f.encrypt(iv, []byte(token))
	if err != nil {
		return err
	}
	wire := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)

	path := f.path(provider)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(wire), 0o600); err != nil {
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	return os.Rename(tmp, path)
}

func (f *File) Delete(provider string) error {
	err := os.Remove(f.path(provider))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *File) encrypt(iv, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func (f *File) decrypt(iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("tokenstore: ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = byte(padLen)
	}
	return append(data, pad...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("tokenstore: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("tokenstore: invalid padding")
	}
	return data[:len(data)-padLen], nil
}

// readFileScoped opens dir as an os.Root and reads name from it, refusing
// to follow a name that escapes dir. Grounded on the teacher's
// tools/si/internal/vault/secureio.go readFileScoped.
func readFileScoped(dir, name string) ([]byte, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()
	return root.ReadFile(name)
}
