package models

import "gorm.io/gorm"

const (
	OPERATOR_ROLE_READONLY = "ro"
	OPERATOR_ROLE_ADMIN    = "admin"
)

// Operator is a console login. Only used when SEC_JWT_SECRET_KEY is set.
type Operator struct {
	gorm.Model

	FullName string
	Email    string `gorm:"uniqueIndex;size:191"`

	PasswordHash string
	Role         string
}
