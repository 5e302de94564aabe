package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	verificationCodeLen      = 8
	verificationCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func newVerificationCode() (string, error) {
	max := big.NewInt(int64(len(verificationCodeAlphabet)))
	buf := make([]byte, verificationCodeLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		buf[i] = verificationCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
