package payment

import (
	"encoding/json"
	"net/http"

	orderdomain "github.com/tokengate/tokengate/internal/order/domain"
)

const ProviderMock = "mock"

// MockAdapter is a development-only provider that accepts unsigned
// settlement payloads. It is never registered in production.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Provider() string { return ProviderMock }

func (a *MockAdapter) Parse(body []byte, _ http.Header) (orderdomain.Settlement, error) {
	var payload struct {
		OutTradeNo    string `json:"out_trade_no"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return orderdomain.Settlement{}, ErrMalformedEvent
	}
	if payload.OutTradeNo == "" {
		return orderdomain.Settlement{}, ErrMalformedEvent
	}
	if payload.TransactionID == "" {
		payload.TransactionID = "mock"
	}
	return orderdomain.Settlement{
		OutTradeNo:    payload.OutTradeNo,
		TransactionID: payload.TransactionID,
		PaymentMethod: ProviderMock,
		Payload:       body,
	}, nil
}
