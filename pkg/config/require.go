package config

import (
	"fmt"
	"log"
)

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// RequireMinLen is the non-fatal variant used where the caller wants to
// report the problem itself.
func RequireMinLen(value []byte, n int, envName string) error {
	if len(value) < n {
		return fmt.Errorf("env %s must be at least %d bytes, got %d", envName, n, len(value))
	}
	return nil
}
