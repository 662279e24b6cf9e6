package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/crypto/bcrypt"
)

// maxBcryptInput is the longest input bcrypt accepts.
const maxBcryptInput = 72

// bcryptInput returns password as bcrypt input. Longer passwords are
// reduced to the base64 SHA-256 of their bytes, which fits the limit.
func bcryptInput(password string) []byte {
	if len(password) <= maxBcryptInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// PasswordLength counts UTF-16 code units, matching browser string length.
func PasswordLength(password string) int {
	return len(utf16.Encode([]rune(password)))
}

// HashPassword returns a bcrypt digest of password. Passwords of any
// length are accepted.
func HashPassword(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether password matches digest. legacy is true
// when the match was against a pre-bcrypt digest that should be upgraded.
func CheckPassword(digest, password string) (match, legacy bool) {
	if isBcrypt(digest) {
		err := bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(password))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false
		}
		return err == nil, false
	}
	ok := subtle.ConstantTimeCompare([]byte(digest), []byte(LegacyDigest(password))) == 1
	return ok, ok
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2")
}

// LegacyDigest reproduces the 32-bit rolling hash the browser version
// stored: h = h*31 + c over UTF-16 code units, wrapped to int32, printed
// in signed hex. It is not a security primitive and is only used to verify
// imported accounts before their digest is replaced with bcrypt.
func LegacyDigest(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 16)
}
