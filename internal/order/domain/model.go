package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Order snapshots the purchased plan at creation time. Fulfillment grants
// from the snapshot, never from the live catalog, so a later price or grant
// change cannot alter what an already-paid order delivers.
type Order struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID `gorm:"not null;index" json:"account_id"`
	OutTradeNo    string       `gorm:"uniqueIndex;not null" json:"out_trade_no"`
	PlanID        string       `gorm:"not null" json:"plan_id"`
	Title         string       `gorm:"not null" json:"title"`
	Amount        float64      `gorm:"not null" json:"amount"`
	TokenGrant    int64        `gorm:"not null;default:0" json:"token_grant"`
	DaysGrant     int          `gorm:"not null;default:0" json:"days_grant"`
	Status        string       `gorm:"not null;default:pending" json:"status"`
	PaymentMethod string       `gorm:"not null;default:''" json:"payment_method"`
	TransactionID *string      `json:"transaction_id,omitempty"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`

	// SettlementPayload keeps the provider's raw settlement event for audit.
	SettlementPayload datatypes.JSON `json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// Plan is a purchasable catalog entry.
type Plan struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Amount     float64 `json:"amount"`
	TokenGrant int64   `json:"token_grant"`
	DaysGrant  int     `json:"days_grant"`
}

var plans = []Plan{
	{ID: "monthly", Title: "Pro Monthly", Amount: 29.0, DaysGrant: 30},
	{ID: "yearly", Title: "Pro Yearly", Amount: 299.0, DaysGrant: 365},
	{ID: "pack-100w", Title: "Token Pack 1M", Amount: 9.9, TokenGrant: 1_000_000},
	{ID: "pack-500w", Title: "Token Pack 5M", Amount: 39.9, TokenGrant: 5_000_000},
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a catalog entry.
func PlanByID(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
