package service

import (
	"context"
	"fmt"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/notify"
)

// Alerter turns market lifecycle events into operator notifications. Trade
// and claim events are deliberately ignored; they are far too chatty for
// alert channels and flow through the event bus instead.
type Alerter struct {
	notifier *notify.Notifier
}

// NewAlerter creates an Alerter dispatching through the given notifier.
func NewAlerter(notifier *notify.Notifier) *Alerter {
	return &Alerter{notifier: notifier}
}

// Publish implements domain.EventSink.
func (a *Alerter) Publish(ctx context.Context, ev domain.Event) {
	var title, message string
	switch ev.Type {
	case domain.EventMarketCreated:
		title = "Market created"
		message = fmt.Sprintf("Market %d was created by %s.", ev.MarketID, ev.User.Hex())
	case domain.EventMarketValidated:
		title = "Market validated"
		message = fmt.Sprintf("Market %d is now open for trading.", ev.MarketID)
	case domain.EventMarketInvalidated:
		title = "Market invalidated"
		message = fmt.Sprintf("Market %d was invalidated; the creator seed was refunded.", ev.MarketID)
	case domain.EventMarketResolved:
		title = "Market resolved"
		message = fmt.Sprintf("Market %d resolved with winning option %d.", ev.MarketID, ev.Option)
	case domain.EventMarketDisputed:
		title = "Market disputed"
		message = fmt.Sprintf("Market %d was disputed by %s; claims are frozen.", ev.MarketID, ev.User.Hex())
	case domain.EventDisputeResolved:
		title = "Dispute resolved"
		message = fmt.Sprintf("Market %d dispute settled; winning option is %d.", ev.MarketID, ev.Option)
	default:
		return
	}

	// Delivery errors are already logged by the notifier.
	_ = a.notifier.Notify(ctx, ev.Type, title, message)
}
