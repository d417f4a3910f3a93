package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tokengate/tokengate/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *UsageRecord) error
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, page pagination.Pagination) ([]*UsageRecord, int64, error)

	// SumCostBetween aggregates cost_tokens for created_at in [from, to).
	SumCostBetween(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from, to time.Time) (int64, error)
}
