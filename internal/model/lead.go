// internal/model/lead.go
package model

import "time"

// Field limits, counted in characters.
const (
	MaxNameLength    = 200
	MaxEmailLength   = 200
	MaxCompanyLength = 200
	MaxPhoneLength   = 50
	MaxMessageLength = 2000
)

// Lead is a prospective customer's contact submission. Records are
// created once per lower-cased email and never mutated afterwards.
type Lead struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Company   string    `json:"company" db:"company"`
	Phone     string    `json:"phone" db:"phone"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	SourceIP  string    `json:"source_ip" db:"source_ip"`
}
