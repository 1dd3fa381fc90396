// Package chat is the realtime messaging engine: it owns the live
// connection, ingests inbound traffic into per-conversation logs, tracks
// read state, and supports optimistic local sends.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentloop/contract"
	"rentloop/domain"
	"rentloop/domain/event"
	apperrors "rentloop/errors"
	"rentloop/projection"
	"rentloop/runtime/workers"
	"rentloop/ws"
)

const dialWait = 10 * time.Second

// Engine owns the single Connection for the session plus the conversation
// map. It implements contract.SessionListener so login opens the socket
// and logout tears it down.
//
// All state is guarded by one mutex; the read pump goroutine and callers
// funnel every mutation through it, so observers see "last dispatched
// operation wins" semantics.
type Engine struct {
	mu              sync.Mutex
	log             *slog.Logger
	api             contract.MessageAPI
	dialer          contract.Dialer
	restartInterval time.Duration
	sinkTimeout     time.Duration
	now             func() time.Time

	sinks []contract.EventSink

	state         ws.State
	identity      domain.Identity
	epoch         uint64
	transport     contract.Transport
	conversations *projection.Conversations
	active        string
	hasActive     bool
	pumpCancel    context.CancelFunc
	pumpDone      chan struct{}
}

func NewEngine(api contract.MessageAPI, dialer contract.Dialer, log *slog.Logger,
	restartInterval, sinkTimeout time.Duration) *Engine {
	return &Engine{
		log:             log,
		api:             api,
		dialer:          dialer,
		restartInterval: restartInterval,
		sinkTimeout:     sinkTimeout,
		now:             time.Now,
		conversations:   projection.NewConversations(),
	}
}

// AddSink registers a consumer for the engine's domain events.
func (e *Engine) AddSink(sinks ...contract.EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sinks...)
}

// State returns the current connection state.
func (e *Engine) State() ws.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionStarted implements contract.SessionListener.
func (e *Engine) SessionStarted(identity domain.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), dialWait)
	defer cancel()
	if err := e.Connect(ctx, identity); err != nil {
		e.log.Warn("Connect on login failed", "user", identity.ID, "error", err)
	}
}

// SessionEnded implements contract.SessionListener. It runs synchronously
// inside Logout: the connection is down and the conversation map cleared
// before Logout returns.
func (e *Engine) SessionEnded() {
	e.Disconnect()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identity = domain.Identity{}
	e.epoch++
	e.conversations.Clear()
	e.active = ""
	e.hasActive = false
}

// Connect opens the connection for an identity. Idempotent: calling it
// while open or connecting for the same identity is a no-op; a different
// identity closes the prior connection first.
func (e *Engine) Connect(ctx context.Context, identity domain.Identity) error {
	e.mu.Lock()
	if e.state != ws.StateClosed {
		if e.identity.ID == identity.ID {
			e.mu.Unlock()
			return nil
		}
		e.mu.Unlock()
		e.Disconnect()
		e.mu.Lock()
	}
	if e.identity.ID != identity.ID {
		e.conversations.Clear()
		e.epoch++
		e.active = ""
		e.hasActive = false
	}
	e.identity = identity
	e.state = ws.StateConnecting
	e.mu.Unlock()

	transport, err := e.dialer.Dial(ctx, identity)
	if err != nil {
		e.mu.Lock()
		e.state = ws.StateClosed
		e.mu.Unlock()
		return fmt.Errorf("%w: %v", apperrors.ErrConnectFailed, err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	if e.state != ws.StateConnecting || e.identity.ID != identity.ID {
		// Disconnect raced the dial; drop the fresh transport.
		e.mu.Unlock()
		cancel()
		_ = transport.Close()
		return apperrors.ErrNotConnected
	}
	e.transport = transport
	e.state = ws.StateOpen
	e.pumpCancel = cancel
	e.pumpDone = done
	e.mu.Unlock()

	sup := workers.NewSupervisor(e.log, e.restartInterval)
	sup.Add(&readPump{engine: e, identity: identity})
	go func() {
		defer close(done)
		sup.Run(pumpCtx)
	}()

	e.log.Info("Connection open", "user", identity.ID)
	e.publish(event.ConnectionOpened{UserID: identity.ID})
	return nil
}

// Disconnect closes the connection and cancels the read pump subscription.
// Safe to call when already closed.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	transport := e.transport
	cancel := e.pumpCancel
	done := e.pumpDone
	wasLive := e.state != ws.StateClosed
	userID := e.identity.ID
	e.transport = nil
	e.pumpCancel = nil
	e.pumpDone = nil
	e.state = ws.StateClosed
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if transport != nil {
		_ = transport.Close()
	}
	if done != nil {
		<-done
	}
	if wasLive {
		e.publish(event.ConnectionClosed{UserID: userID})
	}
}

// Send transmits a message and synchronously appends an optimistic local
// copy so the sender sees it without waiting for the round trip. The copy
// carries a temporary uuid and stays pending until the server echo
// replaces it.
func (e *Engine) Send(ctx context.Context, receiverID, content string) (domain.Message, error) {
	e.mu.Lock()
	if e.state != ws.StateOpen || e.transport == nil {
		e.mu.Unlock()
		return domain.Message{}, apperrors.ErrNotConnected
	}
	transport := e.transport
	me := e.identity
	e.mu.Unlock()

	out := domain.Outbound{ReceiverID: receiverID, Content: content, Kind: domain.KindText}
	if err := transport.Send(ctx, out); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrSendFailed, err)
	}

	local := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   me.ID,
		ReceiverID: receiverID,
		Content:    content,
		Kind:       domain.KindText,
		Pending:    true,
		CreatedAt:  e.now(),
	}

	e.mu.Lock()
	e.conversations.Append(receiverID, local)
	e.mu.Unlock()

	e.publish(event.MessageSent{Key: receiverID, Message: local})
	return local, nil
}

// ingest merges one inbound message. The conversation key is the
// participant who is not me; an echo of my own pending send replaces the
// optimistic copy in place instead of duplicating it.
func (e *Engine) ingest(m domain.Message) {
	if m.Kind == "" {
		m.Kind = domain.KindText
	}

	e.mu.Lock()
	me := e.identity.ID
	key := domain.ConversationKey(me, m)
	if m.SenderID == me {
		if tempID, ok := e.conversations.Reconcile(key, m); ok {
			e.mu.Unlock()
			e.publish(event.MessageReconciled{Key: key, TempID: tempID, Message: m})
			return
		}
	}
	e.conversations.Append(key, m)
	e.mu.Unlock()

	e.publish(event.MessageIngested{Key: key, Message: m})
}

// History fetches the persisted conversation and replaces the local log
// for that key. A result arriving after the identity changed is discarded.
func (e *Engine) History(ctx context.Context, otherUserID string) ([]domain.Message, error) {
	e.mu.Lock()
	epoch := e.epoch
	e.mu.Unlock()

	msgs, err := e.api.Messages(ctx, otherUserID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return nil, apperrors.ErrIdentityChanged
	}
	e.conversations.Replace(otherUserID, msgs)
	e.mu.Unlock()
	return msgs, nil
}

// MarkRead flips the local read flag immediately and asks the server to do
// the same; the flip is reverted if the server refuses. Symmetric with the
// optimistic send path.
func (e *Engine) MarkRead(ctx context.Context, messageID string) error {
	e.mu.Lock()
	wasRead, found := e.conversations.MarkRead(messageID, true)
	epoch := e.epoch
	e.mu.Unlock()

	if err := e.api.MarkRead(ctx, messageID); err != nil {
		if found && !wasRead {
			e.mu.Lock()
			if e.epoch == epoch {
				e.conversations.MarkRead(messageID, false)
			}
			e.mu.Unlock()
		}
		return err
	}
	return nil
}

// Messages returns a copy of the local log for one conversation. Callers
// must History first if they need the complete persisted view.
func (e *Engine) Messages(otherUserID string) []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversations.Messages(otherUserID)
}

// UnreadCount counts messages in the conversation addressed to me and not
// yet read.
func (e *Engine) UnreadCount(otherUserID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversations.Unread(otherUserID, e.identity.ID)
}

// TotalUnread sums UnreadCount over every known conversation.
func (e *Engine) TotalUnread() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversations.TotalUnread(e.identity.ID)
}

// Conversations lists one row per conversation, newest last message first.
func (e *Engine) Conversations() []projection.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversations.Summaries(e.identity.ID)
}

// Open focuses a conversation. If nothing is held locally for that user
// the persisted history is fetched as a side effect.
func (e *Engine) Open(ctx context.Context, otherUserID string) error {
	e.mu.Lock()
	e.active = otherUserID
	e.hasActive = true
	empty := e.conversations.Len(otherUserID) == 0
	e.mu.Unlock()

	if empty {
		if _, err := e.History(ctx, otherUserID); err != nil {
			return err
		}
	}
	return nil
}

// CloseConversation clears the focus.
func (e *Engine) CloseConversation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = ""
	e.hasActive = false
}

// Active returns the focused conversation, if any.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active, e.hasActive
}

// currentTransport is read by the pump to distinguish first run from a
// reconnect after failure.
func (e *Engine) currentTransport() contract.Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport
}

// redial reopens the transport after a failure, from inside the pump.
func (e *Engine) redial(ctx context.Context, identity domain.Identity) (contract.Transport, error) {
	e.mu.Lock()
	if e.identity.ID != identity.ID {
		e.mu.Unlock()
		return nil, apperrors.ErrIdentityChanged
	}
	e.state = ws.StateConnecting
	e.mu.Unlock()

	transport, err := e.dialer.Dial(ctx, identity)
	if err != nil {
		e.mu.Lock()
		if e.state == ws.StateConnecting {
			e.state = ws.StateClosed
		}
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectFailed, err)
	}

	e.mu.Lock()
	if ctx.Err() != nil || e.identity.ID != identity.ID {
		// Disconnect or an identity change raced the dial.
		e.mu.Unlock()
		_ = transport.Close()
		return nil, apperrors.ErrIdentityChanged
	}
	e.transport = transport
	e.state = ws.StateOpen
	e.mu.Unlock()

	e.log.Info("Connection reopened", "user", identity.ID)
	e.publish(event.ConnectionOpened{UserID: identity.ID})
	return transport, nil
}

// transportLost records a transport failure: state goes to closed, sinks
// are told, nothing panics. The supervisor restarts the pump, which is the
// reconnect attempt.
func (e *Engine) transportLost(t contract.Transport, cause error) {
	_ = t.Close()

	e.mu.Lock()
	if e.transport == t {
		e.transport = nil
		e.state = ws.StateClosed
	}
	userID := e.identity.ID
	e.mu.Unlock()

	e.log.Warn("Connection lost", "user", userID, "error", cause)
	e.publish(event.ConnectionClosed{UserID: userID, Reason: cause.Error()})
}

// publish fans an event out to every sink with a bounded context. Sink
// failures are logged, never propagated.
func (e *Engine) publish(evt event.DomainEvent) {
	e.mu.Lock()
	sinks := append([]contract.EventSink(nil), e.sinks...)
	e.mu.Unlock()
	if len(sinks) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.sinkTimeout)
	defer cancel()
	for _, sink := range sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			e.log.Warn("Event sink failed", "event", evt.Name(), "error", err)
		}
	}
}
