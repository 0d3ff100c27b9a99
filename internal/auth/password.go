package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted one-way digest of plaintext. The salt is
// generated per call and embedded in the digest.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// CheckPassword reports whether plaintext matches the digest. bcrypt's
// comparison is constant-time.
func CheckPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
