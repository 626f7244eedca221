package utils

import (
	"github.com/google/uuid"
)

// GenerateID generates a new UUID for accounts, consents and permissions
func GenerateID() string {
	return uuid.New().String()
}

