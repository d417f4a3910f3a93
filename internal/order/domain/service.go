package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CreateOrderRequest struct {
	AccountID snowflake.ID
	PlanID    string
}

// Settlement is a confirmed payment notification from a payment provider.
type Settlement struct {
	OutTradeNo    string
	TransactionID string

	// PaymentMethod is the settling provider's name, recorded on the order.
	PaymentMethod string

	// Payload is the provider's raw event body, stored with the order.
	Payload datatypes.JSON
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)

	// Get returns an order scoped to its owning account, for status polling.
	Get(ctx context.Context, accountID snowflake.ID, outTradeNo string) (Order, error)

	// List returns the account's most recent orders, newest first.
	List(ctx context.Context, accountID snowflake.ID) ([]Order, error)

	// Fulfill marks the order paid and delivers its grants. Idempotent:
	// replayed settlements for an already-paid order are absorbed silently.
	Fulfill(ctx context.Context, settlement Settlement) error
}

var (
	ErrInvalidPlan   = errors.New("invalid_plan")
	ErrOrderNotFound = errors.New("order_not_found")
)
