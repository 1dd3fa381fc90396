package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rentloop/domain"
)

type fixedCreds struct {
	token string
}

func (f fixedCreds) Credential() (string, bool) {
	return f.token, f.token != ""
}

func TestState_String(t *testing.T) {
	req := require.New(t)
	req.Equal("closed", StateClosed.String())
	req.Equal("connecting", StateConnecting.String())
	req.Equal("open", StateOpen.String())
}

func TestDialer_Dial(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type seen struct {
		path  string
		token string
	}
	got := make(chan seen, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{path: r.URL.Path, token: r.Header.Get("Authorization")}

		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")

		// Echo the first outbound frame back as a server message.
		var out domain.Outbound
		require.NoError(t, wsjson.Read(r.Context(), conn, &out))
		echo := domain.Message{
			ID:         "srv-1",
			SenderID:   "u-alice",
			ReceiverID: out.ReceiverID,
			Content:    out.Content,
			Kind:       out.Kind,
		}
		require.NoError(t, wsjson.Write(r.Context(), conn, echo))
	}))
	defer server.Close()

	baseURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dialer := NewDialer(baseURL, fixedCreds{token: "tok-1"}, slog.Default())

	transport, err := dialer.Dial(ctx, domain.Identity{ID: "u-alice"})
	req.NoError(err)
	defer transport.Close()

	handshake := <-got
	req.Equal("/ws/u-alice", handshake.path)
	req.Equal("Bearer tok-1", handshake.token)

	out := domain.Outbound{ReceiverID: "u-bob", Content: "hello", Kind: domain.KindText}
	req.NoError(transport.Send(ctx, out))

	msg, err := transport.Receive(ctx)
	req.NoError(err)
	req.Equal("srv-1", msg.ID)
	req.Equal("hello", msg.Content)
	req.Equal(domain.KindText, msg.Kind)
}

func TestConn_ReceiveAfterClose(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		// Hold the socket open until the client goes away.
		_, _, _ = conn.Reader(r.Context())
	}))
	defer server.Close()

	baseURL := "ws" + strings.TrimPrefix(server.URL, "http")
	dialer := NewDialer(baseURL, fixedCreds{}, slog.Default())

	transport, err := dialer.Dial(ctx, domain.Identity{ID: "u-alice"})
	req.NoError(err)

	req.NoError(transport.Close())
	_, err = transport.Receive(ctx)
	req.Error(err)
}
