package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	accountrepo "github.com/tokengate/tokengate/internal/account/repository"
	accountservice "github.com/tokengate/tokengate/internal/account/service"
	"github.com/tokengate/tokengate/internal/clock"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/order/domain"
	orderrepo "github.com/tokengate/tokengate/internal/order/repository"
	"github.com/tokengate/tokengate/internal/provider"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	usagerepo "github.com/tokengate/tokengate/internal/usage/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupOrderService(t *testing.T, clk clock.Clock) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&accountdomain.Account{}, &usagedomain.UsageRecord{}, &domain.Order{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	accountSvc := accountservice.New(accountservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      accountrepo.Provide(),
		UsageRepo: usagerepo.Provide(),
		Resolver:  provider.NewResolver(config.Config{}),
	})

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       orderrepo.Provide(),
		AccountSvc: accountSvc,
	})

	return svc, db, node
}

func seedOrderAccount(t *testing.T, db *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	id := node.Generate()
	seedAccountWithID(t, db, id)
	return id
}

func TestCreateOrderSnapshotsPlan(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupOrderService(t, clk)
	ctx := context.Background()

	id := seedOrderAccount(t, db, node)

	order, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "pack-100w"})
	require.NoError(t, err)
	assert.Equal(t, "pack-100w", order.PlanID)
	assert.Equal(t, 9.9, order.Amount)
	assert.Equal(t, int64(1_000_000), order.TokenGrant)
	assert.Equal(t, 0, order.DaysGrant)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.True(t, strings.HasPrefix(order.OutTradeNo, "PT20260401090000"))
	assert.Len(t, order.OutTradeNo, 24)

	_, err = svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	_, err = svc.Create(ctx, domain.CreateOrderRequest{AccountID: node.Generate(), PlanID: "monthly"})
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestGetScopedToAccount(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := setupOrderService(t, clk)
	ctx := context.Background()

	owner := seedOrderAccount(t, db, node)
	other := seedOrderAccount(t, db, node)

	order, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: owner, PlanID: "monthly"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, order.OutTradeNo)
	require.NoError(t, err)
	assert.Equal(t, order.OutTradeNo, got.OutTradeNo)

	// Another account cannot see the order.
	_, err = svc.Get(ctx, other, order.OutTradeNo)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestFulfillGrantsTokensOnce(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := setupOrderService(t, clk)
	ctx := context.Background()

	id := seedOrderAccount(t, db, node)
	order, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "pack-100w"})
	require.NoError(t, err)

	settlement := domain.Settlement{
		OutTradeNo:    order.OutTradeNo,
		TransactionID: "tx_123",
		PaymentMethod: "stripe",
		Payload:       []byte(`{"event":"paid"}`),
	}
	require.NoError(t, svc.Fulfill(ctx, settlement))
	require.NoError(t, svc.Fulfill(ctx, settlement))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, int64(1_000_000), account.TokenBalance)

	got, err := svc.Get(ctx, id, order.OutTradeNo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, "tx_123", *got.TransactionID)
	assert.Equal(t, "stripe", got.PaymentMethod)
	assert.NotNil(t, got.PaidAt)
	assert.JSONEq(t, `{"event":"paid"}`, string(got.SettlementPayload))
}

func TestFulfillRollsBackWhenGrantFails(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := setupOrderService(t, clk)
	ctx := context.Background()

	id := seedOrderAccount(t, db, node)
	order, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "pack-100w"})
	require.NoError(t, err)

	// The account vanishes before the settlement lands, so the grant fails.
	require.NoError(t, db.Delete(&accountdomain.Account{}, "id = ?", id).Error)

	settlement := domain.Settlement{OutTradeNo: order.OutTradeNo, TransactionID: "tx_late"}
	err = svc.Fulfill(ctx, settlement)
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)

	// The flip rolled back with the grant: the order is still pending and a
	// retried settlement can fulfill it.
	var stored domain.Order
	require.NoError(t, db.First(&stored, "out_trade_no = ?", order.OutTradeNo).Error)
	assert.Equal(t, domain.StatusPending, stored.Status)

	seedAccountWithID(t, db, id)
	require.NoError(t, svc.Fulfill(ctx, settlement))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, int64(1_000_000), account.TokenBalance)
}

func seedAccountWithID(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	account := accountdomain.Account{
		ID:              id,
		Username:        fmt.Sprintf("user-%s", id),
		Email:           fmt.Sprintf("user-%s@example.com", id),
		PasswordHash:    "x",
		MembershipLevel: accountdomain.MembershipFree,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(&account).Error)
}

func TestFulfillMembershipStacking(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupOrderService(t, clk)
	ctx := context.Background()

	id := seedOrderAccount(t, db, node)

	first, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "monthly"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "monthly"})
	require.NoError(t, err)

	require.NoError(t, svc.Fulfill(ctx, domain.Settlement{OutTradeNo: first.OutTradeNo, TransactionID: "tx_1"}))
	require.NoError(t, svc.Fulfill(ctx, domain.Settlement{OutTradeNo: second.OutTradeNo, TransactionID: "tx_2"}))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, accountdomain.MembershipPro, account.MembershipLevel)
	require.NotNil(t, account.MembershipExpireAt)
	assert.Equal(t, now.AddDate(0, 0, 60), account.MembershipExpireAt.UTC())
}

func TestFulfillUnknownOrder(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	svc, _, _ := setupOrderService(t, clk)

	err := svc.Fulfill(context.Background(), domain.Settlement{OutTradeNo: "PT00000000000000DEADBEEF"})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListNewestFirstCapped(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupOrderService(t, clk)
	ctx := context.Background()

	id := seedOrderAccount(t, db, node)
	first, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "monthly"})
	require.NoError(t, err)
	clk.Advance(time.Minute)
	second, err := svc.Create(ctx, domain.CreateOrderRequest{AccountID: id, PlanID: "yearly"})
	require.NoError(t, err)

	orders, err := svc.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.OutTradeNo, orders[0].OutTradeNo)
	assert.Equal(t, first.OutTradeNo, orders[1].OutTradeNo)
}
