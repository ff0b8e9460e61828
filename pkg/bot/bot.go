// Package bot classifies inbound channel messages and dispatches them to
// registered event listeners or, failing that, to the NLU backend, relaying
// whatever the backend answers back to the sender.
package bot

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/user/convobridge/pkg/events"
	"github.com/user/convobridge/pkg/messenger"
	"github.com/user/convobridge/pkg/nlu"
	"github.com/user/convobridge/pkg/session"
)

// Config holds the dispatch behaviour knobs.
type Config struct {
	StartPhrase   string
	WelcomeEvent  string
	FallbackReply string
}

// Bot ties the classifier, the event registry, the NLU adapter, and the
// outbound channel together into one update-processing pipeline.
type Bot struct {
	cfg      Config
	sessions session.Store
	gate     *events.Registry
	adapter  *nlu.Adapter
	sender   messenger.Sender
	logger   zerolog.Logger
}

// New creates a Bot. All collaborators are required except the registry,
// which may be empty but not nil.
func New(cfg Config, sessions session.Store, gate *events.Registry, adapter *nlu.Adapter, sender messenger.Sender, logger zerolog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		sessions: sessions,
		gate:     gate,
		adapter:  adapter,
		sender:   sender,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// HandleUpdate processes one webhook delivery. A delivery batches multiple
// entries and each entry batches multiple messages; they are processed
// strictly in order, and a failure on one message never aborts the rest of
// the batch.
func (b *Bot) HandleUpdate(ctx context.Context, body []byte) {
	update := gjson.ParseBytes(body)
	update.Get("entry").ForEach(func(_, entry gjson.Result) bool {
		entry.Get("messaging").ForEach(func(_, msg gjson.Result) bool {
			b.handleMessage(ctx, json.RawMessage(msg.Raw))
			return true
		})
		return true
	})
}

func (b *Bot) handleMessage(ctx context.Context, raw json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Message handler panicked")
		}
	}()

	senderID := gjson.GetBytes(raw, "sender.id").String()
	if senderID == "" {
		b.logger.Warn().Msg("Inbound message has no sender id, skipping")
		return
	}

	cls := Classify(raw, b.cfg.StartPhrase)
	b.logger.Debug().
		Str("sender_id", senderID).
		Str("kind", cls.Kind.String()).
		Msg("Classified inbound message")

	if cls.Kind == KindEcho {
		return
	}

	if exists, err := b.sessions.CheckExists(ctx, senderID); err == nil && !exists {
		b.logger.Debug().Str("sender_id", senderID).Msg("New session")
	}

	if err := b.sessions.Set(ctx, senderID); err != nil {
		b.logger.Error().Err(err).Str("sender_id", senderID).Msg("Session touch failed, dropping message")
		return
	}

	if cls.Kind == KindFallback {
		b.logger.Warn().Str("sender_id", senderID).Msg("Unrecognized message shape")
		return
	}

	if name := eventName(cls.Kind); b.gate.IsHooked(name) {
		b.gate.Emit(name, events.Payload{
			SenderID: senderID,
			Text:     cls.Text,
			Message:  raw,
		})
		return
	}

	var ex nlu.Exchange
	switch cls.Kind {
	case KindWelcome:
		ex = b.adapter.SendEvent(ctx, b.cfg.WelcomeEvent, senderID)
	case KindText, KindPostback, KindQuickReply:
		ex = b.adapter.SendText(ctx, cls.Text, senderID)
	case KindGeoLocation:
		// No default geolocation handler. Coordinates only reach user
		// code through a registered listener.
		b.logger.Debug().Str("sender_id", senderID).Msg("Geolocation message with no listener")
		return
	default:
		return
	}

	b.relay(ctx, senderID, ex)
}

// relay forwards the exchange result to the sender. Fragments go out in
// backend order, and any trouble along the way degrades to the canned
// fallback reply.
func (b *Bot) relay(ctx context.Context, senderID string, ex nlu.Exchange) {
	switch ex.Outcome {
	case nlu.OutcomeSuccess:
		for _, frag := range ex.Fragments {
			if frag.Speech == "" {
				b.logger.Debug().
					Str("exchange_id", ex.ID).
					Int("fragment_type", frag.Type).
					Msg("Skipping fragment without speech")
				continue
			}
			if err := b.sender.Send(ctx, senderID, messenger.Text(frag.Speech)); err != nil {
				b.logger.Error().Err(err).Str("sender_id", senderID).Msg("Reply send failed")
				b.sendFallback(ctx, senderID)
				return
			}
		}
	case nlu.OutcomeEmpty:
		// Nothing to say.
	case nlu.OutcomeFailure:
		b.logger.Error().Err(ex.Err).Str("sender_id", senderID).Msg("NLU exchange failed")
		b.sendFallback(ctx, senderID)
	}
}

func (b *Bot) sendFallback(ctx context.Context, senderID string) {
	if err := b.sender.Send(ctx, senderID, messenger.Text(b.cfg.FallbackReply)); err != nil {
		b.logger.Error().Err(err).Str("sender_id", senderID).Msg("Fallback send failed")
	}
}

func eventName(k Kind) string {
	switch k {
	case KindText:
		return events.TextMessage
	case KindWelcome:
		return events.WelcomeMessage
	case KindPostback:
		return events.PostbackMessage
	case KindQuickReply:
		return events.QuickReplyPayload
	case KindGeoLocation:
		return events.GeoLocationMessage
	default:
		return ""
	}
}
