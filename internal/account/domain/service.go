package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	"gorm.io/gorm"
)

type DebitRequest struct {
	AccountID        snowflake.ID
	Model            string
	TaskType         string
	PromptTokens     int
	CompletionTokens int
}

type GrantRequest struct {
	AccountID snowflake.ID
	Tokens    int64
	Days      int
}

type Profile struct {
	AccountID          snowflake.ID `json:"user_id"`
	Username           string       `json:"username"`
	Email              string       `json:"email"`
	Avatar             *string      `json:"avatar,omitempty"`
	MembershipLevel    string       `json:"membership_level"`
	MembershipExpireAt *time.Time   `json:"membership_expire_at,omitempty"`
	DaysLeft           int          `json:"days_left"`
	TokenBalance       int64        `json:"token_balance"`
	TokenTotalUsed     int64        `json:"token_total_used"`
	TokenUsagePercent  float64      `json:"token_usage_percent"`
}

// Service is the balance ledger: the only writer of debits, the grant target
// for settlements, and the advisory balance check used by the relay.
type Service interface {
	// CheckSufficient reports whether the balance covers max(1, estimated)
	// tokens. Advisory only: nothing is reserved, so two concurrent requests
	// can both pass and later drive the balance negative.
	CheckSufficient(ctx context.Context, accountID snowflake.ID, estimatedTokens int) error

	// Debit appends a usage record and applies the charge atomically.
	Debit(ctx context.Context, req DebitRequest) (usagedomain.UsageRecord, error)

	// Grant credits tokens and/or extends membership. Not idempotent; callers
	// guarantee at-most-once delivery.
	Grant(ctx context.Context, req GrantRequest) error

	// GrantTx applies a grant inside the caller's transaction so the grant
	// commits or rolls back together with the caller's own writes.
	GrantTx(ctx context.Context, tx *gorm.DB, req GrantRequest) error

	GetByID(ctx context.Context, id snowflake.ID) (Account, error)
	Profile(ctx context.Context, id snowflake.ID) (Profile, error)
}

var (
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidGrant        = errors.New("invalid_grant")
	ErrInvalidDebit        = errors.New("invalid_debit")
)
