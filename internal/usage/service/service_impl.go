package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/clock"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	Clock       clock.Clock
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	accountRepo accountdomain.Repository
	loc         *time.Location
}

func New(p Params) domain.Service {
	loc, err := time.LoadLocation(p.Config.UsageTimezone)
	if err != nil {
		p.Log.Warn("invalid usage timezone, falling back to UTC",
			zap.String("timezone", p.Config.UsageTimezone))
		loc = time.UTC
	}

	return &Service{
		db:          p.DB,
		log:         p.Log.Named("usage.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		loc:         loc,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListUsageRequest) (domain.ListUsageResponse, error) {
	if req.AccountID == 0 {
		return domain.ListUsageResponse{}, domain.ErrInvalidAccount
	}

	page := req.Page.Normalize()

	records, total, err := s.repo.ListByAccount(ctx, s.db, req.AccountID, page)
	if err != nil {
		return domain.ListUsageResponse{}, err
	}

	out := make([]domain.UsageRecord, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}

	return domain.ListUsageResponse{
		Records:  out,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func (s *Service) Dashboard(ctx context.Context, accountID snowflake.ID) (domain.Dashboard, error) {
	if accountID == 0 {
		return domain.Dashboard{}, domain.ErrInvalidAccount
	}

	balance, found, err := s.accountRepo.Balance(ctx, s.db, accountID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	if !found {
		return domain.Dashboard{}, accountdomain.ErrNotFound
	}

	now := s.clock.Now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	trend := make([]domain.TrendPoint, 0, 7)
	var consumedToday int64
	for i := 6; i >= 0; i-- {
		dayStart := midnight.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		sum, err := s.repo.SumCostBetween(ctx, s.db, accountID, dayStart, dayEnd)
		if err != nil {
			return domain.Dashboard{}, err
		}
		trend = append(trend, domain.TrendPoint{
			Date:  dayStart.Format("01-02"),
			Value: sum,
		})
		if i == 0 {
			consumedToday = sum
		}
	}

	return domain.Dashboard{
		TotalBalance:  balance,
		ConsumedToday: consumedToday,
		Trend:         trend,
	}, nil
}
