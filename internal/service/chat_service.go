package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mercaline/chat-service/internal/audit"
	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/internal/hub"
	"github.com/mercaline/chat-service/internal/kafka"
	"github.com/mercaline/chat-service/internal/store"
	"github.com/mercaline/chat-service/pkg/log"
)

type dispatcher struct {
	registry    *hub.Registry
	store       store.PresenceUnreadStore
	producer    kafka.MessageProducer
	tracker     *UnseenTracker
	presenceTTL time.Duration
}

// NewDispatcher wires the gateway-side message path: registry for live
// delivery, presence/unseen store, and the durable log producer.
func NewDispatcher(
	reg *hub.Registry,
	st store.PresenceUnreadStore,
	producer kafka.MessageProducer,
	presenceTTL time.Duration,
) Dispatcher {
	return &dispatcher{
		registry:    reg,
		store:       st,
		producer:    producer,
		tracker:     NewUnseenTracker(),
		presenceTTL: presenceTTL,
	}
}

func (d *dispatcher) HandleFrame(ctx context.Context, c *hub.Client, frame []byte) {
	if !c.Registered() {
		d.handleRegistration(ctx, c, frame)
		return
	}

	var base domain.BaseFrame
	if err := json.Unmarshal(frame, &base); err != nil {
		l := log.Ctx(ctx)
		l.Warn().
			Str(log.FieldConnectionID, c.ConnID).
			Str(log.FieldIdentity, c.Identity.Token()).
			Err(err).
			Msg("dropping unparseable frame")
		return
	}

	switch base.Type {
	case domain.FrameTypeMarkAsSeen:
		d.handleMarkSeen(ctx, c, frame)
	case domain.FrameTypePing:
		c.SendEvent(domain.Event{Type: domain.EventTypePong})
	default:
		// No type, or any type other than the control frames, is a
		// new-message frame.
		d.handleNewMessage(ctx, c, frame)
	}
}

// handleRegistration consumes the first frame of a connection. A
// structured payload before registration is a protocol violation and is
// dropped; a bare token transitions the connection to registered.
func (d *dispatcher) handleRegistration(ctx context.Context, c *hub.Client, frame []byte) {
	l := log.Ctx(ctx)

	if len(frame) > 0 && frame[0] == '{' && json.Valid(frame) {
		l.Warn().Str(log.FieldConnectionID, c.ConnID).Msg("structured frame before registration, dropping")
		return
	}

	id, err := domain.ParseIdentityToken(string(frame))
	if err != nil {
		l.Warn().Str(log.FieldConnectionID, c.ConnID).Err(err).Msg("invalid registration token")
		return
	}

	c.Identity = id
	d.registry.Register(c)

	if err := d.store.SetPresence(ctx, id, d.presenceTTL); err != nil {
		l.Error().Str(log.FieldIdentity, id.Token()).Err(err).Msg("failed to set presence flag")
	}

	audit.Log(ctx, audit.ActionRegister, id.Token(), "connection registered")
}

func (d *dispatcher) handleMarkSeen(ctx context.Context, c *hub.Client, frame []byte) {
	l := log.Ctx(ctx)

	var f domain.MarkSeenFrame
	if err := json.Unmarshal(frame, &f); err != nil || f.ConversationID == "" {
		l.Warn().Str(log.FieldIdentity, c.Identity.Token()).Msg("dropping malformed mark-as-seen frame")
		return
	}

	// The in-memory count is zeroed immediately; the durable reset is
	// best-effort so a failure here never blocks the connection.
	d.tracker.Reset(c.Identity, f.ConversationID)

	if err := d.store.ResetUnseen(ctx, c.Identity.Role, f.ConversationID); err != nil {
		l.Error().
			Str(log.FieldIdentity, c.Identity.Token()).
			Str(log.FieldConversationID, f.ConversationID).
			Err(err).
			Msg("failed to reset durable unseen counter")
	}
}

func (d *dispatcher) handleNewMessage(ctx context.Context, c *hub.Client, frame []byte) {
	l := log.Ctx(ctx)

	var f domain.NewMessageFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		l.Warn().Str(log.FieldIdentity, c.Identity.Token()).Err(err).Msg("dropping malformed message frame")
		return
	}

	msg := &domain.ChatMessage{
		ConversationID: f.ConversationID,
		SenderID:       f.SenderID,
		SenderRole:     domain.Role(f.SenderType),
		Content:        f.MessageBody,
		CreatedAt:      time.Now().UTC(),
	}

	if err := msg.Validate(); err != nil || f.ReceiverID == "" {
		l.Warn().
			Str(log.FieldIdentity, c.Identity.Token()).
			Str(log.FieldConversationID, f.ConversationID).
			AnErr("reason", err).
			Msg("rejecting invalid message frame")
		return
	}

	recipient := domain.Identity{Role: msg.RecipientRole(), ID: f.ReceiverID}
	event := domain.NewMessageEvent(msg)

	// Dispatcher-time optimistic count; the durable counter is bumped by
	// the persist consumer only after a successful bulk write.
	count := d.tracker.Increment(recipient, msg.ConversationID)

	if delivered := d.registry.Send(recipient, event); delivered {
		d.registry.Send(recipient, domain.UnseenCountEvent(msg.ConversationID, count))
	}

	// Echo routes through the registry: with multiple tabs only the
	// most recently registered one receives it.
	d.registry.Send(msg.Sender(), event)

	if err := d.producer.ProduceMessage(ctx, msg); err != nil {
		// Fire-and-forget ingest: the frame is dropped and the client
		// gets no negative acknowledgment.
		l.Error().
			Str(log.FieldConversationID, msg.ConversationID).
			Str(log.FieldSenderID, msg.SenderID).
			Err(err).
			Msg("failed to publish message to durable log")
		return
	}

	audit.LogMessage(ctx, c.Identity.Token(), msg.ConversationID)
}

func (d *dispatcher) HandleDisconnect(ctx context.Context, c *hub.Client) {
	if !c.Registered() {
		return
	}

	// Only the connection that owns the registry mapping clears
	// presence; a superseded tab closing must not mark the user offline.
	if !d.registry.Deregister(c) {
		return
	}

	l := log.Ctx(ctx)
	if err := d.store.ClearPresence(ctx, c.Identity); err != nil {
		l.Error().Str(log.FieldIdentity, c.Identity.Token()).Err(err).Msg("failed to clear presence flag")
	}

	audit.Log(ctx, audit.ActionDeregister, c.Identity.Token(), "connection deregistered")
}
