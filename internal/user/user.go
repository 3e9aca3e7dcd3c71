package user

import (
	"context"
	"time"
)

// User is one account record. Only the bcrypt digest is ever stored.
type User struct {
	UserID         string
	Email          string
	PasswordDigest []byte
	Role           string
	CreatedAt      time.Time
}

// Store is the user repository contract. Insert surfaces
// sentinel.ErrConflict (wrapped) when the email is taken.
type Store interface {
	Insert(ctx context.Context, u User) error
	FindByEmail(ctx context.Context, email string) (User, error)
}
