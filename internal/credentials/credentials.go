package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Ambiguous characters (0/O, 1/l/I) are left out so passwords read out
// over the phone survive
const passwordChars = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TempPasswordLength is the length of generated admin passwords
const TempPasswordLength = 12

// GenerateLinkToken returns a random 32-character hex token for branch links
func GenerateLinkToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateTempPassword generates a random password for a new admin account
func GenerateTempPassword() (string, error) {
	password := make([]byte, TempPasswordLength)
	for i := range password {
		c, err := randomChar(passwordChars)
		if err != nil {
			return "", err
		}
		password[i] = c
	}
	return string(password), nil
}

func randomChar(chars string) (byte, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
	if err != nil {
		return 0, err
	}
	return chars[num.Int64()], nil
}
