package storage

import (
	"context"
	"strings"

	"leadgen/internal/model"
)

// LeadStore is the persistence interface for leads. Implementations
// enforce at most one lead per lower-cased email.
type LeadStore interface {
	// FindByEmail returns nil and no error when no lead matches.
	FindByEmail(ctx context.Context, email string) (*model.Lead, error)

	// Insert appends lead unless a lead with the same email exists.
	// The returned bool reports whether lead was written.
	Insert(ctx context.Context, lead *model.Lead) (bool, error)
}

// EmailKey is the dedup key for an email address.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
