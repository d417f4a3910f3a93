package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/tokengate/tokengate/internal/order/domain"
	"github.com/tokengate/tokengate/internal/payment"
)

const maxWebhookBody = 1 << 20

func (s *Server) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": orderdomain.Plans()})
}

type createOrderRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("plan_id", "required", "plan_id is required"))
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		AccountID: currentAccountID(c),
		PlanID:    req.PlanID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payURL := ""
	if s.cfg.Stripe.APIKey != "" {
		payURL, err = s.stripeAdapter.CheckoutURL(order)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":   order,
		"pay_url": payURL,
	})
}

func (s *Server) GetOrder(c *gin.Context) {
	order, err := s.orderSvc.Get(c.Request.Context(), currentAccountID(c), c.Param("out_trade_no"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// PaymentWebhook receives settlement notifications. Providers retry
// deliveries, so fulfillment must stay idempotent end to end.
func (s *Server) PaymentWebhook(c *gin.Context) {
	providerName := c.Param("provider")
	adapter, err := s.payments.Get(providerName)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, payment.ErrMalformedEvent)
		return
	}

	settlement, err := adapter.Parse(body, c.Request.Header)
	if err != nil {
		if errors.Is(err, payment.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		s.obsMetrics.IncSettlementEvent(providerName, "rejected")
		AbortWithError(c, err)
		return
	}

	if err := s.orderSvc.Fulfill(c.Request.Context(), settlement); err != nil {
		s.obsMetrics.IncSettlementEvent(providerName, "failed")
		AbortWithError(c, err)
		return
	}

	s.obsMetrics.IncSettlementEvent(providerName, "fulfilled")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// DevMockPay settles the caller's own pending order without a payment
// provider. Registered only when dev mock pay is enabled.
func (s *Server) DevMockPay(c *gin.Context) {
	outTradeNo := c.Param("out_trade_no")

	// Scope the order to the caller before settling it.
	if _, err := s.orderSvc.Get(c.Request.Context(), currentAccountID(c), outTradeNo); err != nil {
		AbortWithError(c, err)
		return
	}

	err := s.orderSvc.Fulfill(c.Request.Context(), orderdomain.Settlement{
		OutTradeNo:    outTradeNo,
		TransactionID: "dev_mock",
		PaymentMethod: payment.ProviderMock,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), currentAccountID(c), outTradeNo)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
