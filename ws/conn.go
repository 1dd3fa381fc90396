// Package ws is the live duplex connection to the backend's per-identity
// websocket endpoint.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rentloop/contract"
	"rentloop/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// State of the connection as seen by the engine.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "closed"
}

// Dialer opens websocket connections against /ws/{userId}, attaching the
// bearer credential read at dial time.
type Dialer struct {
	baseURL string
	creds   contract.CredentialSource
	log     *slog.Logger
}

func NewDialer(baseURL string, creds contract.CredentialSource, log *slog.Logger) *Dialer {
	return &Dialer{baseURL: strings.TrimRight(baseURL, "/"), creds: creds, log: log}
}

func (d *Dialer) Dial(ctx context.Context, identity domain.Identity) (contract.Transport, error) {
	header := http.Header{}
	if token, ok := d.creds.Credential(); ok {
		header.Set("Authorization", "Bearer "+token)
	}

	addr := fmt.Sprintf("%s/ws/%s", d.baseURL, identity.ID)
	conn, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	conn.SetReadLimit(maxMessageSize)

	d.log.Debug("Socket opened", "user", identity.ID)
	return &Conn{conn: conn, log: d.log}, nil
}

// Conn wraps one live websocket. JSON frames in both directions.
type Conn struct {
	conn *websocket.Conn
	log  *slog.Logger
}

func (c *Conn) Send(ctx context.Context, out domain.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, c.conn, out)
}

// Receive blocks until an inbound message arrives or ctx is cancelled.
func (c *Conn) Receive(ctx context.Context) (domain.Message, error) {
	var m domain.Message
	if err := wsjson.Read(ctx, c.conn, &m); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
