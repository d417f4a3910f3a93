package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*Account, error)

	// Balance reads the current balance without reserving anything.
	Balance(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, bool, error)

	// ApplyDebit decrements token_balance and increments token_total_used in a
	// single SQL-side arithmetic update so concurrent debits commute.
	ApplyDebit(ctx context.Context, db *gorm.DB, id snowflake.ID, cost int64, now time.Time) error

	// AddBalance increments token_balance SQL-side.
	AddBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, tokens int64, now time.Time) error

	SetMembership(ctx context.Context, db *gorm.DB, id snowflake.ID, level string, expireAt time.Time, now time.Time) error
}
