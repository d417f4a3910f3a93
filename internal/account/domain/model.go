package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Account struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Username           string       `gorm:"uniqueIndex;not null" json:"username"`
	Email              string       `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       string       `gorm:"not null" json:"-"`
	Avatar             *string      `json:"avatar,omitempty"`
	TokenBalance       int64        `gorm:"not null;default:0" json:"token_balance"`
	TokenTotalUsed     int64        `gorm:"not null;default:0" json:"token_total_used"`
	MembershipLevel    string       `gorm:"not null;default:free" json:"membership_level"`
	MembershipExpireAt *time.Time   `json:"membership_expire_at,omitempty"`
	CreatedAt          time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

const (
	MembershipFree = "free"
	MembershipPro  = "pro"
)
