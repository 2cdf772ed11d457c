package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword compares a presented secret against the stored hash.
// A mismatch is a normal negative outcome, never an error. An empty
// secret or hash short-circuits to false without running the comparison;
// bcrypt itself compares in constant time.
func VerifyPassword(storedHash, presented string) bool {
	if presented == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(presented)) == nil
}
