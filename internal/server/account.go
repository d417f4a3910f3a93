package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	usagedomain "github.com/tokengate/tokengate/internal/usage/domain"
	"github.com/tokengate/tokengate/pkg/db/pagination"
)

const displayTimeLayout = "2006-01-02 15:04"

func (s *Server) Profile(c *gin.Context) {
	profile, err := s.accountSvc.Profile(c.Request.Context(), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) Quota(c *gin.Context) {
	dashboard, err := s.usageSvc.Dashboard(c.Request.Context(), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

type usageItem struct {
	ID               snowflake.ID `json:"id"`
	Model            string       `json:"model"`
	TaskType         string       `json:"task_type"`
	PromptTokens     int          `json:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens"`
	TotalTokens      int          `json:"total_tokens"`
	CostTokens       int64        `json:"cost_tokens"`
	CreatedAt        string       `json:"created_at"`
}

func (s *Server) Usage(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page", "invalid_request", "invalid pagination"))
		return
	}

	resp, err := s.usageSvc.List(c.Request.Context(), usagedomain.ListUsageRequest{
		AccountID: currentAccountID(c),
		Page:      page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]usageItem, 0, len(resp.Records))
	for _, r := range resp.Records {
		items = append(items, usageItem{
			ID:               r.ID,
			Model:            r.Model,
			TaskType:         r.TaskType,
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			TotalTokens:      r.TotalTokens,
			CostTokens:       r.CostTokens,
			CreatedAt:        r.CreatedAt.Format(displayTimeLayout),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"records":   items,
		"total":     resp.Total,
		"page":      resp.Page,
		"page_size": resp.PageSize,
	})
}

type orderItem struct {
	OutTradeNo    string  `json:"out_trade_no"`
	PlanID        string  `json:"plan_id"`
	Title         string  `json:"title"`
	Amount        float64 `json:"amount"`
	TokenGrant    int64   `json:"token_grant"`
	DaysGrant     int     `json:"days_grant"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
	TransactionID *string `json:"transaction_id,omitempty"`
	PaidAt        *string `json:"paid_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func (s *Server) Orders(c *gin.Context) {
	orders, err := s.orderSvc.List(c.Request.Context(), currentAccountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]orderItem, 0, len(orders))
	for _, o := range orders {
		item := orderItem{
			OutTradeNo:    o.OutTradeNo,
			PlanID:        o.PlanID,
			Title:         o.Title,
			Amount:        o.Amount,
			TokenGrant:    o.TokenGrant,
			DaysGrant:     o.DaysGrant,
			Status:        o.Status,
			PaymentMethod: o.PaymentMethod,
			TransactionID: o.TransactionID,
			CreatedAt:     o.CreatedAt.Format(displayTimeLayout),
		}
		if o.PaidAt != nil {
			formatted := o.PaidAt.Format(displayTimeLayout)
			item.PaidAt = &formatted
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"orders": items})
}
