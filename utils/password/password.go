package password

import "golang.org/x/crypto/bcrypt"

// MinLength is the shortest password accepted at registration or activation.
const MinLength = 6

// Hash hashes a plain text password
func Hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// Check reports whether pw matches hash. An empty hash never matches.
func Check(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
