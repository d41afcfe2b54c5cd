// ABOUTME: Password hashing and verification using bcrypt
// ABOUTME: Used by registration and login

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned when a password doesn't match its hash
var ErrWrongPassword = errors.New("wrong password")

// HashPassword hashes a plaintext password with bcrypt at the default cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against its bcrypt hash
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPassword
		}
		return fmt.Errorf("comparing password: %w", err)
	}
	return nil
}
