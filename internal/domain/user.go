package domain

import "time"

// User is a registered ledger owner. Username is the identity the rest of the
// system keys on; the credential is never serialized.
type User struct {
	Username     string    `gorm:"column:username;type:varchar(100);primaryKey" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "user_auth"
}
