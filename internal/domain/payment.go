package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultUnlockPriceCents is the fixed per-image unlock price.
const DefaultUnlockPriceCents = 80

// Price is a fixed decimal amount in minor units.
type Price struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
}

// DefaultPrice returns the standard unlock price ($0.80).
func DefaultPrice() Price {
	return Price{Cents: DefaultUnlockPriceCents, Currency: "USD"}
}

// Amount returns the price as a decimal.
func (p Price) Amount() float64 {
	return float64(p.Cents) / 100
}

func (p Price) symbol() string {
	switch strings.ToUpper(p.Currency) {
	case "", "USD":
		return "$"
	case "EUR":
		return "€"
	case "IDR":
		return "Rp"
	default:
		return strings.ToUpper(p.Currency) + " "
	}
}

// String formats the price without locale rules, e.g. "$0.80".
func (p Price) String() string {
	return fmt.Sprintf("%s%d.%02d", p.symbol(), p.Cents/100, p.Cents%100)
}

// Display formats the price using the decimal conventions of locale.
func (p Price) Display(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || tag == language.Und {
		return p.String()
	}
	printer := message.NewPrinter(tag)
	return p.symbol() + printer.Sprintf("%.2f", p.Amount())
}

// PaymentSession is the single pending unlock for a widget.
type PaymentSession struct {
	TargetIndex int       `json:"target_index"`
	Batch       string    `json:"batch"`
	Price       Price     `json:"price"`
	OrderID     string    `json:"order_id,omitempty"`
	OpenedAt    time.Time `json:"opened_at"`
}

// UnlockRecord is a successful unlock persisted to the ledger.
type UnlockRecord struct {
	ID         string
	WidgetID   string
	Batch      string
	Index      int
	OrderID    string
	PriceCents int64
	Currency   string
	CreatedAt  time.Time
}

// Viewer is the ambient account info read from the auth session. It is only
// displayed, never written.
type Viewer struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	CreditsBalance   int    `json:"credits_balance"`
	SubscriptionPlan string `json:"subscription_plan,omitempty"`
}
