package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/clock"
	"github.com/tokengate/tokengate/internal/provider"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	UsageRepo usagedomain.Repository
	Resolver  *provider.Resolver
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	usageRepo usagedomain.Repository
	resolver  *provider.Resolver
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("account.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		usageRepo: p.UsageRepo,
		resolver:  p.Resolver,
	}
}

func (s *Service) CheckSufficient(ctx context.Context, accountID snowflake.ID, estimatedTokens int) error {
	required := int64(estimatedTokens)
	if required < 1 {
		required = 1
	}

	balance, found, err := s.repo.Balance(ctx, s.db, accountID)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	if balance < required {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (s *Service) Debit(ctx context.Context, req domain.DebitRequest) (usagedomain.UsageRecord, error) {
	if req.AccountID == 0 || strings.TrimSpace(req.Model) == "" {
		return usagedomain.UsageRecord{}, domain.ErrInvalidDebit
	}
	if req.PromptTokens < 0 || req.CompletionTokens < 0 {
		return usagedomain.UsageRecord{}, domain.ErrInvalidDebit
	}

	taskType := strings.TrimSpace(req.TaskType)
	if taskType == "" {
		taskType = usagedomain.TaskTypeChat
	}

	total := req.PromptTokens + req.CompletionTokens
	cost := chargedCost(total, s.resolver.Multiplier(req.Model))
	now := s.clock.Now()

	record := usagedomain.UsageRecord{
		ID:               s.genID.Generate(),
		AccountID:        req.AccountID,
		Model:            req.Model,
		TaskType:         taskType,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      total,
		CostTokens:       cost,
		CreatedAt:        now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.usageRepo.Insert(ctx, tx, &record); err != nil {
			return err
		}
		return s.repo.ApplyDebit(ctx, tx, req.AccountID, cost, now)
	})
	if err != nil {
		return usagedomain.UsageRecord{}, err
	}

	s.log.Debug("debit applied",
		zap.String("account_id", req.AccountID.String()),
		zap.String("model", req.Model),
		zap.Int64("cost_tokens", cost),
	)

	return record, nil
}

func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.GrantTx(ctx, tx, req)
	})
}

func (s *Service) GrantTx(ctx context.Context, tx *gorm.DB, req domain.GrantRequest) error {
	if req.AccountID == 0 || req.Tokens < 0 || req.Days < 0 {
		return domain.ErrInvalidGrant
	}
	if req.Tokens == 0 && req.Days == 0 {
		return domain.ErrInvalidGrant
	}

	now := s.clock.Now()

	account, err := s.repo.FindByID(ctx, tx, req.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrNotFound
	}

	if req.Tokens > 0 {
		if err := s.repo.AddBalance(ctx, tx, req.AccountID, req.Tokens, now); err != nil {
			return err
		}
	}

	if req.Days > 0 {
		// Stack onto an unexpired membership; start fresh otherwise.
		base := now
		if account.MembershipExpireAt != nil && account.MembershipExpireAt.After(now) {
			base = *account.MembershipExpireAt
		}
		expireAt := base.AddDate(0, 0, req.Days)
		if err := s.repo.SetMembership(ctx, tx, req.AccountID, domain.MembershipPro, expireAt, now); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) Profile(ctx context.Context, id snowflake.ID) (domain.Profile, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if account == nil {
		return domain.Profile{}, domain.ErrNotFound
	}

	now := s.clock.Now()

	totalEver := account.TokenBalance + account.TokenTotalUsed
	usagePercent := 0.0
	if totalEver > 0 {
		usagePercent = math.Round(float64(account.TokenTotalUsed)/float64(totalEver)*1000) / 10
	}

	return domain.Profile{
		AccountID:          account.ID,
		Username:           account.Username,
		Email:              account.Email,
		Avatar:             account.Avatar,
		MembershipLevel:    account.MembershipLevel,
		MembershipExpireAt: account.MembershipExpireAt,
		DaysLeft:           daysLeft(account.MembershipExpireAt, now),
		TokenBalance:       account.TokenBalance,
		TokenTotalUsed:     account.TokenTotalUsed,
		TokenUsagePercent:  usagePercent,
	}, nil
}

// chargedCost scales raw tokens by the model multiplier. A request that
// reached the upstream always costs at least 1 token.
func chargedCost(totalTokens int, multiplier float64) int64 {
	cost := int64(math.Round(float64(totalTokens) * multiplier))
	if cost < 1 {
		cost = 1
	}
	return cost
}

func daysLeft(expireAt *time.Time, now time.Time) int {
	if expireAt == nil || !expireAt.After(now) {
		return 0
	}
	return int(expireAt.Sub(now).Hours() / 24)
}
