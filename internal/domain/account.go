package domain

import (
	"time"
)

// Account caches the derived cash balance of one user. Version counts the
// transactions appended so far and doubles as the next ledger sequence number.
type Account struct {
	Username  string    `gorm:"column:username;type:varchar(100);primaryKey" json:"username"`
	Balance   Money     `gorm:"column:balance;not null;default:0" json:"balance"`
	Version   int64     `gorm:"column:version;not null;default:0" json:"version"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string {
	return "account_totals"
}
