package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. Credits live in CreditBalance, not here.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
