package router

import (
	"context"
	"log/slog"

	"simpleclipboard/internal/clipboard"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/wire"
)

// Relay delivers text to another daemon.
type Relay interface {
	Forward(ctx context.Context, address, text string) error
}

// Dispatcher executes routing decisions against a relay and a clipboard sink.
type Dispatcher struct {
	policy Policy
	relay  Relay
	sink   clipboard.Sink
	logger *slog.Logger
}

// NewDispatcher builds a Dispatcher. relay may be nil when policy has no relay address.
func NewDispatcher(policy Policy, relay Relay, sink clipboard.Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		policy: policy,
		relay:  relay,
		sink:   sink,
		logger: logging.NewComponentLogger(logger, "router"),
	}
}

// Policy returns the routing configuration in effect.
func (d *Dispatcher) Policy() Policy { return d.policy }

// Handle routes msg, performs its side effect, and returns the ack.
func (d *Dispatcher) Handle(ctx context.Context, msg wire.Message) (wire.Ack, error) {
	logger := logging.WithContext(ctx, d.logger)
	decision := Route(msg, d.policy)

	var ack wire.Ack
	switch decision.Effect {
	case EffectNone:
		ack = decision.Ack
	case EffectRelay:
		ack = d.relayThenLocal(ctx, logger, decision.Text)
	case EffectLocal:
		ack = LocalOutcome(d.setLocal(decision.Text))
	}

	logger.Debug("message routed", logging.Args(append(
		logging.DecisionAttrs("route", ack.DetailString(), decision.Effect.String()),
		logging.String("message_kind", msg.Kind.String()),
		logging.TextSize(decision.Text),
		logging.Bool("ok", ack.OK),
	)...)...)
	return ack, nil
}

func (d *Dispatcher) relayThenLocal(ctx context.Context, logger *slog.Logger, text string) wire.Ack {
	if d.relay != nil {
		err := d.relay.Forward(ctx, d.policy.RelayAddr, text)
		if err == nil {
			return RelayOutcome(true, false)
		}
		logging.WarnWithContext(logger, "relay failed; falling back to local clipboard", "relay_failed",
			logging.Error(err),
			logging.String("relay_addr", d.policy.RelayAddr),
			logging.String(logging.FieldErrorHint, "check that the downstream daemon is running and reachable"),
			logging.String(logging.FieldImpact, "text lands on this host's clipboard instead of the final host"),
		)
	}
	return RelayOutcome(false, d.setLocal(text))
}

func (d *Dispatcher) setLocal(text string) bool {
	if d.sink == nil {
		return false
	}
	return d.sink.SetText(text)
}
