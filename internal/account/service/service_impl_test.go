package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	accountrepo "github.com/tokengate/tokengate/internal/account/repository"
	"github.com/tokengate/tokengate/internal/clock"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/provider"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	usagerepo "github.com/tokengate/tokengate/internal/usage/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAccountService(t *testing.T, clk clock.Clock) (accountdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&accountdomain.Account{}, &usagedomain.UsageRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      accountrepo.Provide(),
		UsageRepo: usagerepo.Provide(),
		Resolver:  provider.NewResolver(config.Config{}),
	})

	return svc, db, node
}

func seedAccount(t *testing.T, db *gorm.DB, node *snowflake.Node, balance int64) snowflake.ID {
	t.Helper()

	id := node.Generate()
	account := accountdomain.Account{
		ID:              id,
		Username:        fmt.Sprintf("user-%s", id),
		Email:           fmt.Sprintf("user-%s@example.com", id),
		PasswordHash:    "x",
		TokenBalance:    balance,
		MembershipLevel: accountdomain.MembershipFree,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(&account).Error)
	return id
}

func TestCheckSufficientBoundary(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 100)

	// balance == estimate passes; the check is inclusive.
	assert.NoError(t, svc.CheckSufficient(ctx, id, 100))
	assert.ErrorIs(t, svc.CheckSufficient(ctx, id, 101), accountdomain.ErrInsufficientBalance)

	// Zero-token estimates still require at least one token of balance.
	empty := seedAccount(t, db, node, 0)
	assert.ErrorIs(t, svc.CheckSufficient(ctx, empty, 0), accountdomain.ErrInsufficientBalance)

	assert.ErrorIs(t, svc.CheckSufficient(ctx, node.Generate(), 1), accountdomain.ErrNotFound)
}

func TestDebitCostScaling(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 10_000)

	rec, err := svc.Debit(ctx, accountdomain.DebitRequest{
		AccountID:        id,
		Model:            "gpt-4o",
		PromptTokens:     100,
		CompletionTokens: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 150, rec.TotalTokens)
	assert.Equal(t, int64(300), rec.CostTokens) // 150 * 2.0
	assert.Equal(t, usagedomain.TaskTypeChat, rec.TaskType)

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, int64(9_700), account.TokenBalance)
	assert.Equal(t, int64(300), account.TokenTotalUsed)
}

func TestDebitMinimumCharge(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 100)

	rec, err := svc.Debit(ctx, accountdomain.DebitRequest{
		AccountID: id,
		Model:     "glm-5",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.CostTokens)
}

func TestDebitCanDriveBalanceNegative(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	// Two requests that both passed the advisory check settle independently;
	// the second one overdraws.
	id := seedAccount(t, db, node, 100)

	_, err := svc.Debit(ctx, accountdomain.DebitRequest{AccountID: id, Model: "glm-5", CompletionTokens: 80})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, accountdomain.DebitRequest{AccountID: id, Model: "glm-5", CompletionTokens: 80})
	require.NoError(t, err)

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, int64(-60), account.TokenBalance)
	assert.Equal(t, int64(160), account.TokenTotalUsed)

	var count int64
	require.NoError(t, db.Model(&usagedomain.UsageRecord{}).Where("account_id = ?", id).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDebitValidation(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _, node := setupAccountService(t, clk)
	ctx := context.Background()

	_, err := svc.Debit(ctx, accountdomain.DebitRequest{Model: "glm-5"})
	assert.ErrorIs(t, err, accountdomain.ErrInvalidDebit)

	_, err = svc.Debit(ctx, accountdomain.DebitRequest{AccountID: node.Generate(), Model: "  "})
	assert.ErrorIs(t, err, accountdomain.ErrInvalidDebit)

	_, err = svc.Debit(ctx, accountdomain.DebitRequest{AccountID: node.Generate(), Model: "glm-5", PromptTokens: -1})
	assert.ErrorIs(t, err, accountdomain.ErrInvalidDebit)
}

func TestGrantTokens(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 50)

	require.NoError(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: id, Tokens: 1_000_000}))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, int64(1_000_050), account.TokenBalance)
	assert.Equal(t, accountdomain.MembershipFree, account.MembershipLevel)
	assert.Nil(t, account.MembershipExpireAt)
}

func TestGrantDaysFreshMembership(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 0)

	require.NoError(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: id, Days: 30}))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	assert.Equal(t, accountdomain.MembershipPro, account.MembershipLevel)
	require.NotNil(t, account.MembershipExpireAt)
	assert.Equal(t, now.AddDate(0, 0, 30), account.MembershipExpireAt.UTC())
}

func TestGrantDaysStacksOnUnexpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 0)

	require.NoError(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: id, Days: 30}))
	require.NoError(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: id, Days: 30}))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	require.NotNil(t, account.MembershipExpireAt)
	assert.Equal(t, now.AddDate(0, 0, 60), account.MembershipExpireAt.UTC())
}

func TestGrantDaysExpiredStartsFromNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 0)
	expired := now.AddDate(0, 0, -5)
	require.NoError(t, db.Model(&accountdomain.Account{}).Where("id = ?", id).
		Updates(map[string]any{"membership_level": accountdomain.MembershipPro, "membership_expire_at": expired}).Error)

	require.NoError(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: id, Days: 30}))

	var account accountdomain.Account
	require.NoError(t, db.First(&account, "id = ?", id).Error)
	require.NotNil(t, account.MembershipExpireAt)
	assert.Equal(t, now.AddDate(0, 0, 30), account.MembershipExpireAt.UTC())
}

func TestGrantValidation(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _, node := setupAccountService(t, clk)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: node.Generate()}), accountdomain.ErrInvalidGrant)
	assert.ErrorIs(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: node.Generate(), Tokens: -1}), accountdomain.ErrInvalidGrant)
	assert.ErrorIs(t, svc.Grant(ctx, accountdomain.GrantRequest{AccountID: node.Generate(), Tokens: 10}), accountdomain.ErrNotFound)
}

func TestProfile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 49_850)
	expire := now.AddDate(0, 0, 30)
	require.NoError(t, db.Model(&accountdomain.Account{}).Where("id = ?", id).
		Updates(map[string]any{"token_total_used": 150, "membership_level": accountdomain.MembershipPro, "membership_expire_at": expire}).Error)

	profile, err := svc.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, profile.AccountID)
	assert.Equal(t, int64(49_850), profile.TokenBalance)
	assert.Equal(t, int64(150), profile.TokenTotalUsed)
	assert.Equal(t, 0.3, profile.TokenUsagePercent) // 150/50000 = 0.3%
	assert.Equal(t, 30, profile.DaysLeft)

	_, err = svc.Profile(ctx, node.Generate())
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestProfileNoExpiry(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupAccountService(t, clk)
	ctx := context.Background()

	id := seedAccount(t, db, node, 0)

	profile, err := svc.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, profile.DaysLeft)
	assert.Equal(t, 0.0, profile.TokenUsagePercent)
}
