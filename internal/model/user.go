package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleDoctor     Role = "DOCTOR"
	RolePharmacist Role = "PHARMACIST"
	RoleLabTech    Role = "LAB_TECH"
	RoleAccountant Role = "ACCOUNTANT"
	RolePatient    Role = "PATIENT"
)

func Roles() []Role {
	return []Role{RoleAdmin, RoleDoctor, RolePharmacist, RoleLabTech, RoleAccountant, RolePatient}
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles() {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// IsStaff reports whether the role belongs to clinic personnel.
func (r Role) IsStaff() bool {
	return r != RolePatient && r != ""
}

// User represents a registered account
type User struct {
	ID           uuid.UUID `json:"_id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
