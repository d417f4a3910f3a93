package payment

import (
	"encoding/json"
	"net/http"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"
	"github.com/tokengate/tokengate/internal/config"
	orderdomain "github.com/tokengate/tokengate/internal/order/domain"
	"go.uber.org/zap"
)

const ProviderStripe = "stripe"

// StripeAdapter settles orders through Stripe Checkout. The order's
// out_trade_no rides in the session's client_reference_id and comes back on
// the checkout.session.completed webhook.
type StripeAdapter struct {
	log           *zap.Logger
	webhookSecret string
	successURL    string
	cancelURL     string

	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeAdapter(cfg config.Config, log *zap.Logger) *StripeAdapter {
	stripe.Key = cfg.Stripe.APIKey

	return &StripeAdapter{
		log:           log.Named("payment.stripe"),
		webhookSecret: cfg.Stripe.WebhookSecret,
		successURL:    cfg.Stripe.SuccessURL,
		cancelURL:     cfg.Stripe.CancelURL,
		createSession: session.New,
	}
}

func (a *StripeAdapter) Provider() string { return ProviderStripe }

// CheckoutURL creates a Stripe Checkout session for a pending order and
// returns the hosted payment page URL.
func (a *StripeAdapter) CheckoutURL(order orderdomain.Order) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(order.OutTradeNo),
		SuccessURL:        stripe.String(a.successURL),
		CancelURL:         stripe.String(a.cancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(int64(order.Amount * 100)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(order.Title),
					},
				},
			},
		},
	}

	s, err := a.createSession(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

func (a *StripeAdapter) Parse(body []byte, header http.Header) (orderdomain.Settlement, error) {
	event, err := webhook.ConstructEvent(body, header.Get("Stripe-Signature"), a.webhookSecret)
	if err != nil {
		return orderdomain.Settlement{}, ErrBadSignature
	}

	if event.Type != "checkout.session.completed" {
		a.log.Debug("ignoring stripe event", zap.String("type", event.Type))
		return orderdomain.Settlement{}, ErrEventIgnored
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return orderdomain.Settlement{}, ErrMalformedEvent
	}
	if sess.ClientReferenceID == "" {
		return orderdomain.Settlement{}, ErrMalformedEvent
	}

	transactionID := ""
	if sess.PaymentIntent != nil {
		transactionID = sess.PaymentIntent.ID
	}

	return orderdomain.Settlement{
		OutTradeNo:    sess.ClientReferenceID,
		TransactionID: transactionID,
		PaymentMethod: ProviderStripe,
		Payload:       body,
	}, nil
}
