package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/tokengate/tokengate/pkg/db/pagination"
)

type ListUsageRequest struct {
	AccountID snowflake.ID
	Page      pagination.Pagination
}

type ListUsageResponse struct {
	Records  []UsageRecord `json:"records"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// TrendPoint is one calendar day of charged tokens.
type TrendPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

type Dashboard struct {
	TotalBalance  int64        `json:"total_balance"`
	ConsumedToday int64        `json:"consumed_today"`
	Trend         []TrendPoint `json:"trend"`
}

type Service interface {
	// List returns usage records newest first.
	List(ctx context.Context, req ListUsageRequest) (ListUsageResponse, error)

	// Dashboard returns the balance, today's consumption and a trailing
	// 7-calendar-day trend, oldest day first, zero-filled.
	Dashboard(ctx context.Context, accountID snowflake.ID) (Dashboard, error)
}

var ErrInvalidAccount = errors.New("invalid_account")
