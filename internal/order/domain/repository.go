package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByOutTradeNo(ctx context.Context, db *gorm.DB, outTradeNo string) (*Order, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]*Order, error)

	// MarkPaidIfPending flips a pending order to paid and reports how many
	// rows changed. Zero rows means the order is missing or already paid.
	MarkPaidIfPending(ctx context.Context, db *gorm.DB, outTradeNo, transactionID, paymentMethod string, payload datatypes.JSON, paidAt, now time.Time) (int64, error)
}
