package nlu

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/user/convobridge/pkg/mirror"
	"github.com/user/convobridge/pkg/session"
)

// Adapter resolves text and named-event requests against the backend,
// correlating each sender with its session and interpreting the reply
// into exactly one Exchange outcome.
type Adapter struct {
	client   Requester
	sessions session.Store
	mirror   *mirror.Client
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewAdapter creates an adapter. mirrorClient may be nil to disable
// response mirroring; timeout bounds each backend call.
func NewAdapter(client Requester, sessions session.Store, mirrorClient *mirror.Client, timeout time.Duration, logger zerolog.Logger) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{
		client:   client,
		sessions: sessions,
		mirror:   mirrorClient,
		timeout:  timeout,
		logger:   logger.With().Str("component", "nlu").Logger(),
	}
}

// SendText resolves a free-text request for the sender.
func (a *Adapter) SendText(ctx context.Context, text string, senderID string) Exchange {
	return a.exchange(ctx, senderID, Request{Text: text})
}

// SendEvent resolves a named-event request for the sender.
func (a *Adapter) SendEvent(ctx context.Context, eventName string, senderID string) Exchange {
	return a.exchange(ctx, senderID, Request{EventName: eventName})
}

func (a *Adapter) exchange(ctx context.Context, senderID string, req Request) Exchange {
	id, err := gonanoid.New()
	if err != nil {
		// Entropy exhaustion is rare but an exchange without an ID cannot
		// be correlated in logs.
		a.logger.Warn().Err(err).Msg("Nanoid generation failed, falling back to uuid")
		id = uuid.NewString()
	}
	ex := Exchange{ID: id, SenderID: senderID}

	sess, err := a.sessions.Get(ctx, senderID)
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("senderId", senderID).
			Str("exchangeId", id).
			Msg("Session lookup failed")
		ex.Outcome = OutcomeFailure
		ex.Err = err
		return ex
	}
	ex.SessionID = sess.SessionID
	req.SessionID = sess.SessionID

	a.logger.Debug().
		Str("senderId", senderID).
		Str("sessionId", sess.SessionID).
		Str("exchangeId", id).
		Str("text", req.Text).
		Str("eventName", req.EventName).
		Msg("Sending to NLU backend")

	queryCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Query(queryCtx, req)
	if err != nil {
		a.logger.Debug().
			Err(err).
			Str("senderId", senderID).
			Str("exchangeId", id).
			Msg("NLU backend errored")
		ex.Outcome = OutcomeFailure
		ex.Err = err
		return ex
	}

	// Every resolved response is mirrored, whatever interpret makes of it.
	// Only backend errors skip the sync endpoint.
	a.mirrorResponse(senderID, raw)

	ex.Outcome, ex.Fragments = interpret(raw)
	ex.Raw = raw

	a.logger.Debug().
		Str("senderId", senderID).
		Str("sessionId", sess.SessionID).
		Str("exchangeId", id).
		Str("outcome", ex.Outcome.String()).
		Int("fragments", len(ex.Fragments)).
		Msg("NLU exchange resolved")

	return ex
}

// interpret applies the reply rules in order; first match wins.
func interpret(raw json.RawMessage) (Outcome, []Fragment) {
	result := gjson.GetBytes(raw, "result")
	if !result.Exists() {
		return OutcomeEmpty, nil
	}

	// Channel-specific rich formatting is unsupported: nothing to relay.
	if result.Get("fulfillment.data.facebook").Exists() {
		return OutcomeEmpty, nil
	}

	messages := result.Get("fulfillment.messages")
	if !messages.IsArray() || len(messages.Array()) == 0 {
		return OutcomeEmpty, nil
	}

	fragments := make([]Fragment, 0, len(messages.Array()))
	for _, m := range messages.Array() {
		fragments = append(fragments, Fragment{
			Type:   int(m.Get("type").Int()),
			Speech: m.Get("speech").String(),
			Raw:    json.RawMessage(m.Raw),
		})
	}
	return OutcomeSuccess, fragments
}

func (a *Adapter) mirrorResponse(senderID string, raw json.RawMessage) {
	if !a.mirror.Enabled() {
		return
	}
	a.mirror.Post(map[string]interface{}{
		"sender_id": senderID,
		"response":  raw,
	})
}
