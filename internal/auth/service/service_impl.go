package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/auth/domain"
	"github.com/tokengate/tokengate/internal/auth/password"
	"github.com/tokengate/tokengate/internal/auth/token"
	"github.com/tokengate/tokengate/internal/clock"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLen = 6

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	GenID       *snowflake.Node
	Clock       clock.Clock
	Issuer      *token.Issuer
	AccountRepo accountdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	issuer       *token.Issuer
	accountRepo  accountdomain.Repository
	welcomeGrant int64
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("auth.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		issuer:       p.Issuer,
		accountRepo:  p.AccountRepo,
		welcomeGrant: p.Config.WelcomeGrantTokens,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.Session, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" || email == "" {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if len(req.Password) < minPasswordLen {
		return domain.Session{}, domain.ErrWeakPassword
	}

	if existing, err := s.accountRepo.FindByEmail(ctx, s.db, email); err != nil {
		return domain.Session{}, err
	} else if existing != nil {
		return domain.Session{}, domain.ErrUserExists
	}
	if existing, err := s.accountRepo.FindByUsername(ctx, s.db, username); err != nil {
		return domain.Session{}, err
	} else if existing != nil {
		return domain.Session{}, domain.ErrUserExists
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.clock.Now()
	account := accountdomain.Account{
		ID:              s.genID.Generate(),
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		TokenBalance:    s.welcomeGrant,
		MembershipLevel: accountdomain.MembershipFree,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.accountRepo.Insert(ctx, s.db, &account); err != nil {
		// The pre-checks race with concurrent registrations; the unique
		// indexes are the source of truth.
		if db.IsDuplicateKeyErr(err) {
			return domain.Session{}, domain.ErrUserExists
		}
		return domain.Session{}, err
	}

	s.log.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.Int64("welcome_grant", s.welcomeGrant),
	)

	return s.session(account, now)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.Session, error) {
	identifier := strings.TrimSpace(req.Account)
	if identifier == "" || req.Password == "" {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	var (
		account *accountdomain.Account
		err     error
	)
	if strings.Contains(identifier, "@") {
		account, err = s.accountRepo.FindByEmail(ctx, s.db, identifier)
	} else {
		account, err = s.accountRepo.FindByUsername(ctx, s.db, identifier)
	}
	if err != nil {
		return domain.Session{}, err
	}
	if account == nil || !password.Verify(req.Password, account.PasswordHash) {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	return s.session(*account, s.clock.Now())
}

func (s *Service) session(account accountdomain.Account, now time.Time) (domain.Session, error) {
	signed, expiresAt, err := s.issuer.Issue(account.ID, now)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		Token:     signed,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}
