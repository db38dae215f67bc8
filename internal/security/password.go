package security

import "golang.org/x/crypto/bcrypt"

// Cost is the bcrypt work factor for stored credentials.
const Cost = 10

// Hash password hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	return hashWithCost(plain, Cost)
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

func hashWithCost(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// BcryptHasher adapts the package functions for injection.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: Cost}
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = Cost
	}
	return hashWithCost(plain, cost)
}

func (h BcryptHasher) Check(hash, plain string) error {
	return CheckPassword(hash, plain)
}
