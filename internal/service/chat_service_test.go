package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/internal/hub"
)

type fakeStore struct {
	presence map[domain.Identity]bool
	resets   []string
	counts   map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		presence: make(map[domain.Identity]bool),
		counts:   make(map[string]int64),
	}
}

func (s *fakeStore) SetPresence(ctx context.Context, id domain.Identity, ttl time.Duration) error {
	s.presence[id] = true
	return nil
}

func (s *fakeStore) ClearPresence(ctx context.Context, id domain.Identity) error {
	delete(s.presence, id)
	return nil
}

func (s *fakeStore) IsOnline(ctx context.Context, id domain.Identity) (bool, error) {
	return s.presence[id], nil
}

func (s *fakeStore) IncrementUnseen(ctx context.Context, recipient domain.Role, conversationID string) (int64, error) {
	key := string(recipient) + ":" + conversationID
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeStore) ResetUnseen(ctx context.Context, recipient domain.Role, conversationID string) error {
	key := string(recipient) + ":" + conversationID
	s.resets = append(s.resets, key)
	s.counts[key] = 0
	return nil
}

func (s *fakeStore) GetUnseen(ctx context.Context, recipient domain.Role, conversationID string) (int64, error) {
	return s.counts[string(recipient)+":"+conversationID], nil
}

func (s *fakeStore) Close() error { return nil }

type fakeProducer struct {
	records []*domain.ChatMessage
	failErr error
	// number of events queued on the sender's socket when Produce was
	// called; used to assert the echo happens before the publish.
	senderQueueAtPublish []int
	senderClient         *hub.Client
}

func (p *fakeProducer) ProduceMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if p.senderClient != nil {
		p.senderQueueAtPublish = append(p.senderQueueAtPublish, len(p.senderClient.Send))
	}
	if p.failErr != nil {
		return p.failErr
	}
	p.records = append(p.records, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type testEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func nextEvent(t *testing.T, c *hub.Client) testEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev testEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	default:
		t.Fatal("no event queued")
		return testEvent{}
	}
}

func newTestClient(connID string) *hub.Client {
	return hub.NewClient(connID, nil, config.WebSocketConfig{})
}

func newMessageFrame(t *testing.T, sender, receiver, body, conv, senderType string) []byte {
	t.Helper()
	data, err := json.Marshal(domain.NewMessageFrame{
		SenderID:       sender,
		ReceiverID:     receiver,
		MessageBody:    body,
		ConversationID: conv,
		SenderType:     senderType,
	})
	require.NoError(t, err)
	return data
}

func TestRegistrationTransition(t *testing.T) {
	reg := hub.NewRegistry()
	st := newFakeStore()
	d := NewDispatcher(reg, st, &fakeProducer{}, time.Hour)

	c := newTestClient("conn-1")
	d.HandleFrame(context.Background(), c, []byte("user_u1"))

	require.True(t, c.Registered())
	require.Equal(t, domain.Identity{Role: domain.RoleCustomer, ID: "u1"}, c.Identity)

	_, ok := reg.Lookup(c.Identity)
	require.True(t, ok)
	require.True(t, st.presence[c.Identity], "presence flag must be set on registration")
}

func TestStructuredFrameBeforeRegistrationDropped(t *testing.T) {
	reg := hub.NewRegistry()
	d := NewDispatcher(reg, newFakeStore(), &fakeProducer{}, time.Hour)

	c := newTestClient("conn-1")
	d.HandleFrame(context.Background(), c, newMessageFrame(t, "u1", "m1", "hi", "c1", "user"))

	require.False(t, c.Registered())
	require.Equal(t, 0, reg.Len())
}

// Scenario: customer u1 sends to merchant m1 while m1 is connected. The
// sender gets an echo, the recipient gets the message followed by an
// unseen-count update, and the record lands on the durable log.
func TestDeliveryToOnlineRecipient(t *testing.T) {
	reg := hub.NewRegistry()
	st := newFakeStore()
	prod := &fakeProducer{}
	d := NewDispatcher(reg, st, prod, time.Hour)

	sender := newTestClient("conn-a")
	recipient := newTestClient("conn-b")
	d.HandleFrame(context.Background(), sender, []byte("user_u1"))
	d.HandleFrame(context.Background(), recipient, []byte("seller_m1"))
	prod.senderClient = sender

	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "hi", "c1", "user"))

	// Recipient: NEW_MESSAGE then UNSEEN_COUNT_UPDATE with count 1.
	ev := nextEvent(t, recipient)
	require.Equal(t, domain.EventTypeNewMessage, ev.Type)
	var msgPayload domain.NewMessagePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &msgPayload))
	require.Equal(t, "hi", msgPayload.Content)
	require.Equal(t, "c1", msgPayload.ConversationID)
	require.Equal(t, domain.RoleCustomer, msgPayload.SenderType)
	require.False(t, msgPayload.CreatedAt.IsZero(), "timestamp is assigned at ingest")

	ev = nextEvent(t, recipient)
	require.Equal(t, domain.EventTypeUnseenCountUpdate, ev.Type)
	var countPayload domain.UnseenCountPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &countPayload))
	require.Equal(t, int64(1), countPayload.UnseenCount)

	// Sender: the echo, queued before the publish was attempted.
	ev = nextEvent(t, sender)
	require.Equal(t, domain.EventTypeNewMessage, ev.Type)
	require.Len(t, prod.records, 1)
	require.GreaterOrEqual(t, prod.senderQueueAtPublish[0], 1,
		"echo must be queued before the durable log publish")

	// Second message bumps the pushed count monotonically.
	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "again", "c1", "user"))
	nextEvent(t, recipient) // NEW_MESSAGE
	ev = nextEvent(t, recipient)
	require.NoError(t, json.Unmarshal(ev.Payload, &countPayload))
	require.Equal(t, int64(2), countPayload.UnseenCount)
}

// Scenario: recipient offline. The sender still gets the echo; nothing is
// pushed to the recipient; the record is still published for the persist
// consumer to count.
func TestDeliveryToOfflineRecipient(t *testing.T) {
	reg := hub.NewRegistry()
	prod := &fakeProducer{}
	d := NewDispatcher(reg, newFakeStore(), prod, time.Hour)

	sender := newTestClient("conn-a")
	d.HandleFrame(context.Background(), sender, []byte("user_u1"))

	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "hi", "c1", "user"))

	ev := nextEvent(t, sender)
	require.Equal(t, domain.EventTypeNewMessage, ev.Type)
	require.Len(t, prod.records, 1)
	require.Equal(t, "c1", prod.records[0].ConversationID)
}

func TestInvalidMessageFramesDropped(t *testing.T) {
	reg := hub.NewRegistry()
	prod := &fakeProducer{}
	d := NewDispatcher(reg, newFakeStore(), prod, time.Hour)

	sender := newTestClient("conn-a")
	d.HandleFrame(context.Background(), sender, []byte("user_u1"))

	frames := [][]byte{
		newMessageFrame(t, "u1", "", "hi", "c1", "user"), // no receiver
		newMessageFrame(t, "u1", "m1", "", "c1", "user"), // no body
		newMessageFrame(t, "u1", "m1", "hi", "", "user"), // no conversation
		newMessageFrame(t, "u1", "m1", "hi", "c1", ""),   // no sender role
		newMessageFrame(t, "", "m1", "hi", "c1", "user"), // no sender id
		[]byte("not json at all"),                        // unparseable
	}
	for _, frame := range frames {
		d.HandleFrame(context.Background(), sender, frame)
	}

	require.Empty(t, prod.records, "invalid frames must never reach the log")
	require.Empty(t, sender.Send, "rejected frames produce no client-visible error")
}

func TestMarkSeenResetsImmediately(t *testing.T) {
	reg := hub.NewRegistry()
	st := newFakeStore()
	prod := &fakeProducer{}
	d := NewDispatcher(reg, st, prod, time.Hour)

	sender := newTestClient("conn-a")
	recipient := newTestClient("conn-b")
	d.HandleFrame(context.Background(), sender, []byte("user_u1"))
	d.HandleFrame(context.Background(), recipient, []byte("seller_m1"))

	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "one", "c1", "user"))
	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "two", "c1", "user"))

	markSeen, err := json.Marshal(domain.MarkSeenFrame{Type: domain.FrameTypeMarkAsSeen, ConversationID: "c1"})
	require.NoError(t, err)
	d.HandleFrame(context.Background(), recipient, markSeen)

	require.Contains(t, st.resets, "seller:c1", "durable counter reset must be requested")

	// Drain recipient events, then verify the next message restarts at 1.
	for len(recipient.Send) > 0 {
		<-recipient.Send
	}
	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "three", "c1", "user"))
	nextEvent(t, recipient) // NEW_MESSAGE
	ev := nextEvent(t, recipient)
	var countPayload domain.UnseenCountPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &countPayload))
	require.Equal(t, int64(1), countPayload.UnseenCount, "mark-as-seen must zero the in-memory count immediately")
}

func TestPublishFailureDropsFrameSilently(t *testing.T) {
	reg := hub.NewRegistry()
	prod := &fakeProducer{failErr: errors.New("broker down")}
	d := NewDispatcher(reg, newFakeStore(), prod, time.Hour)

	sender := newTestClient("conn-a")
	d.HandleFrame(context.Background(), sender, []byte("user_u1"))

	d.HandleFrame(context.Background(), sender, newMessageFrame(t, "u1", "m1", "hi", "c1", "user"))

	// The echo still happened (it precedes the publish), but no error
	// event follows it.
	ev := nextEvent(t, sender)
	require.Equal(t, domain.EventTypeNewMessage, ev.Type)
	require.Empty(t, sender.Send)
	require.Empty(t, prod.records)
}

func TestDisconnectClearsPresenceOnlyForOwner(t *testing.T) {
	reg := hub.NewRegistry()
	st := newFakeStore()
	d := NewDispatcher(reg, st, &fakeProducer{}, time.Hour)

	tab1 := newTestClient("conn-1")
	tab2 := newTestClient("conn-2")
	d.HandleFrame(context.Background(), tab1, []byte("user_u1"))
	d.HandleFrame(context.Background(), tab2, []byte("user_u1"))

	id := domain.Identity{Role: domain.RoleCustomer, ID: "u1"}

	// The stale tab closing must not mark the user offline.
	d.HandleDisconnect(context.Background(), tab1)
	require.True(t, st.presence[id])
	_, ok := reg.Lookup(id)
	require.True(t, ok)

	d.HandleDisconnect(context.Background(), tab2)
	require.False(t, st.presence[id])
	_, ok = reg.Lookup(id)
	require.False(t, ok)
}

func TestPingFrameAnswered(t *testing.T) {
	reg := hub.NewRegistry()
	d := NewDispatcher(reg, newFakeStore(), &fakeProducer{}, time.Hour)

	c := newTestClient("conn-1")
	d.HandleFrame(context.Background(), c, []byte("seller_m1"))
	d.HandleFrame(context.Background(), c, []byte(`{"type":"PING"}`))

	ev := nextEvent(t, c)
	require.Equal(t, domain.EventTypePong, ev.Type)
}
