package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tokengate/tokengate/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, account_id, out_trade_no, plan_id, title, amount, token_grant, days_grant, status, transaction_id, paid_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.AccountID,
		order.OutTradeNo,
		order.PlanID,
		order.Title,
		order.Amount,
		order.TokenGrant,
		order.DaysGrant,
		order.Status,
		order.TransactionID,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByOutTradeNo(ctx context.Context, db *gorm.DB, outTradeNo string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE out_trade_no = ?`, outTradeNo,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("account_id = ?", accountID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) MarkPaidIfPending(ctx context.Context, db *gorm.DB, outTradeNo, transactionID, paymentMethod string, payload datatypes.JSON, paidAt, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?,
		     transaction_id = ?,
		     payment_method = ?,
		     settlement_payload = ?,
		     paid_at = ?,
		     updated_at = ?
		 WHERE out_trade_no = ? AND status = ?`,
		domain.StatusPaid, transactionID, paymentMethod, payload, paidAt, now, outTradeNo, domain.StatusPending,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
