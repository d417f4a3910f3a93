package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/clock"
	"github.com/tokengate/tokengate/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	AccountSvc accountdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	accountSvc accountdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		accountSvc: p.AccountSvc,
	}
}

const listLimit = 50

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	if req.AccountID == 0 {
		return domain.Order{}, accountdomain.ErrNotFound
	}

	plan, ok := domain.PlanByID(strings.TrimSpace(req.PlanID))
	if !ok {
		return domain.Order{}, domain.ErrInvalidPlan
	}

	if _, err := s.accountSvc.GetByID(ctx, req.AccountID); err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:         s.genID.Generate(),
		AccountID:  req.AccountID,
		OutTradeNo: s.newTradeNo(),
		PlanID:     plan.ID,
		Title:      plan.Title,
		Amount:     plan.Amount,
		TokenGrant: plan.TokenGrant,
		DaysGrant:  plan.DaysGrant,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created",
		zap.String("out_trade_no", order.OutTradeNo),
		zap.String("plan_id", order.PlanID),
		zap.String("account_id", order.AccountID.String()),
	)

	return order, nil
}

func (s *Service) Get(ctx context.Context, accountID snowflake.ID, outTradeNo string) (domain.Order, error) {
	order, err := s.repo.FindByOutTradeNo(ctx, s.db, strings.TrimSpace(outTradeNo))
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil || order.AccountID != accountID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *Service) List(ctx context.Context, accountID snowflake.ID) ([]domain.Order, error) {
	orders, err := s.repo.ListByAccount(ctx, s.db, accountID, listLimit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *Service) Fulfill(ctx context.Context, settlement domain.Settlement) error {
	outTradeNo := strings.TrimSpace(settlement.OutTradeNo)

	order, err := s.repo.FindByOutTradeNo(ctx, s.db, outTradeNo)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}

	now := s.clock.Now()
	fulfilled := false

	// The flip and the grant commit together: a failed grant rolls the order
	// back to pending so the provider's retry can settle it again.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := s.repo.MarkPaidIfPending(ctx, tx, outTradeNo, settlement.TransactionID, settlement.PaymentMethod, settlement.Payload, now, now)
		if err != nil {
			return err
		}
		if changed == 0 {
			return nil
		}
		fulfilled = true

		if order.TokenGrant > 0 || order.DaysGrant > 0 {
			return s.accountSvc.GrantTx(ctx, tx, accountdomain.GrantRequest{
				AccountID: order.AccountID,
				Tokens:    order.TokenGrant,
				Days:      order.DaysGrant,
			})
		}
		return nil
	})
	if err != nil {
		s.log.Error("settlement failed",
			zap.String("out_trade_no", outTradeNo),
			zap.Error(err),
		)
		return err
	}
	if !fulfilled {
		// Lost the race or a replayed notification; the first settlement won.
		s.log.Info("settlement replay absorbed", zap.String("out_trade_no", outTradeNo))
		return nil
	}

	s.log.Info("order fulfilled",
		zap.String("out_trade_no", outTradeNo),
		zap.String("transaction_id", settlement.TransactionID),
		zap.Int64("token_grant", order.TokenGrant),
		zap.Int("days_grant", order.DaysGrant),
	)

	return nil
}

// newTradeNo builds a merchant order number: a PT prefix, a second-resolution
// UTC timestamp and a random suffix to disambiguate same-second orders.
func (s *Service) newTradeNo() string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return "PT" + s.clock.Now().Format("20060102150405") + strings.ToUpper(hex.EncodeToString(suffix[:]))
}
