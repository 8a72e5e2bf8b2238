package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the most bcrypt will hash; longer input is rejected
// with ErrPasswordTooLong.
const MaxPasswordLength = 72

var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// dummyHash is compared against when no account matches, so a missing
// email costs about as much time as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), bcrypt.DefaultCost)

func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. A malformed hash
// counts as a mismatch.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// SimulateVerify burns one comparison for an unknown account.
func SimulateVerify(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
}
