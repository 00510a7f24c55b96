package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Hashes use the "method$salt$hex" layout already stored in the user table,
// so accounts created before this service keep working.
const (
	DefaultPBKDF2Iterations = 600000
	legacyPBKDF2Iterations  = 260000
	saltChars               = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	saltLength              = 16
)

var ErrUnsupportedHash = errors.New("unsupported password hash")

func HashPassword(password string) (string, error) {
	return hashPBKDF2(password, DefaultPBKDF2Iterations)
}

func hashPBKDF2(password string, iterations int) (string, error) {
	salt, err := genSalt(saltLength)
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", iterations, salt, hex.EncodeToString(key)), nil
}

func VerifyPassword(stored, password string) (bool, error) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return false, ErrUnsupportedHash
	}
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	}
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false, ErrUnsupportedHash
	}
	method, salt, want := parts[0], parts[1], parts[2]
	got, err := derive(method, salt, password)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

func derive(method, salt, password string) (string, error) {
	args := strings.Split(method, ":")
	switch args[0] {
	case "pbkdf2":
		name := "sha256"
		if len(args) > 1 && args[1] != "" {
			name = args[1]
		}
		h, size, err := hashByName(name)
		if err != nil {
			return "", err
		}
		iterations := legacyPBKDF2Iterations
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil || n <= 0 {
				return "", fmt.Errorf("%w: bad iteration count %q", ErrUnsupportedHash, args[2])
			}
			iterations = n
		}
		return hex.EncodeToString(pbkdf2.Key([]byte(password), []byte(salt), iterations, size, h)), nil
	case "scrypt":
		n, r, p := 1<<15, 8, 1
		if len(args) == 4 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil {
				return "", fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
			}
			if r, err = strconv.Atoi(args[2]); err != nil {
				return "", fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
			}
			if p, err = strconv.Atoi(args[3]); err != nil {
				return "", fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
			}
		}
		key, err := scrypt.Key([]byte(password), []byte(salt), n, r, p, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
		}
		return hex.EncodeToString(key), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedHash, args[0])
}

func hashByName(name string) (func() hash.Hash, int, error) {
	switch name {
	case "sha256":
		return sha256.New, sha256.Size, nil
	case "sha512":
		return sha512.New, sha512.Size, nil
	case "sha1":
		return sha1.New, sha1.Size, nil
	}
	return nil, 0, fmt.Errorf("%w: digest %s", ErrUnsupportedHash, name)
}

func genSalt(n int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(saltChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		b.WriteByte(saltChars[idx.Int64()])
	}
	return b.String(), nil
}
