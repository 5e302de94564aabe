package hash

import "golang.org/x/crypto/bcrypt"

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BcryptEncoder adapts the package functions to the credential encoder
// interface used by the auth service.
type BcryptEncoder struct{}

func (BcryptEncoder) Encode(password string) (string, error) { return HashPassword(password) }

func (BcryptEncoder) Verify(hash, password string) bool { return CheckPassword(hash, password) }
