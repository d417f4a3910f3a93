package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tokengate/tokengate/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, username, email, password_hash, avatar, token_balance, token_total_used, membership_level, membership_expire_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Avatar,
		account.TokenBalance,
		account.TokenTotalUsed,
		account.MembershipLevel,
		account.MembershipExpireAt,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE id = ?`, id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)),
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE username = ?`, strings.TrimSpace(username),
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, bool, error) {
	var row struct {
		ID           snowflake.ID
		TokenBalance int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, token_balance FROM accounts WHERE id = ?`, id,
	).Scan(&row).Error
	if err != nil {
		return 0, false, err
	}
	if row.ID == 0 {
		return 0, false, nil
	}
	return row.TokenBalance, true, nil
}

func (r *repo) ApplyDebit(ctx context.Context, db *gorm.DB, id snowflake.ID, cost int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET token_balance = token_balance - ?,
		     token_total_used = token_total_used + ?,
		     updated_at = ?
		 WHERE id = ?`,
		cost, cost, now, id,
	).Error
}

func (r *repo) AddBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, tokens int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET token_balance = token_balance + ?,
		     updated_at = ?
		 WHERE id = ?`,
		tokens, now, id,
	).Error
}

func (r *repo) SetMembership(ctx context.Context, db *gorm.DB, id snowflake.ID, level string, expireAt time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET membership_level = ?,
		     membership_expire_at = ?,
		     updated_at = ?
		 WHERE id = ?`,
		level, expireAt, now, id,
	).Error
}
