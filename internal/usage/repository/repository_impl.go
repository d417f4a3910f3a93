package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tokengate/tokengate/internal/usage/domain"
	"github.com/tokengate/tokengate/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.UsageRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_records (id, account_id, model, task_type, prompt_tokens, completion_tokens, total_tokens, cost_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AccountID,
		record.Model,
		record.TaskType,
		record.PromptTokens,
		record.CompletionTokens,
		record.TotalTokens,
		record.CostTokens,
		record.CreatedAt,
	).Error
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, page pagination.Pagination) ([]*domain.UsageRecord, int64, error) {
	var total int64
	if err := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*domain.UsageRecord
	stmt := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("account_id = ?", accountID)
	stmt = page.Apply(stmt)
	if err := stmt.
		Order("created_at desc, id desc").
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *repo) SumCostBetween(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from, to time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(cost_tokens), 0)
		 FROM usage_records
		 WHERE account_id = ? AND created_at >= ? AND created_at < ?`,
		accountID, from, to,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
