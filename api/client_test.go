package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentloop/domain"
	apperrors "rentloop/errors"
)

type staticCreds struct {
	token string
}

func (s staticCreds) Credential() (string, bool) {
	return s.token, s.token != ""
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, time.Second, slog.Default())
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the token and identity", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req.Equal(http.MethodPost, r.Method)
			req.Equal("/auth/login", r.URL.Path)
			req.Empty(r.Header.Get("Authorization"))

			var body map[string]string
			req.NoError(json.NewDecoder(r.Body).Decode(&body))
			req.Equal("alice@example.com", body["email"])

			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-1",
				"token_type":   "bearer",
				"user":         map[string]any{"id": "u-1", "username": "alice"},
			})
		}))

		identity, token, err := client.Login(ctx, "alice@example.com", "secret123")
		req.NoError(err)
		req.Equal("tok-1", token)
		req.Equal("u-1", identity.ID)
		req.Equal("alice", identity.Username)
	})

	t.Run("401 means bad credentials and must not fire the hook", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"})
		}))

		fired := false
		client.SetUnauthorizedHook(func() { fired = true })

		_, _, err := client.Login(ctx, "alice@example.com", "wrong")
		req.ErrorIs(err, apperrors.ErrInvalidCredentials)
		req.ErrorContains(err, "Incorrect email or password")
		req.False(fired)
	})
}

func TestClient_BearerCredential(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	var seen string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(domain.Identity{ID: "u-1"})
	}))
	client.SetCredentialSource(staticCreds{token: "tok-1"})

	_, err := client.Me(ctx)
	req.NoError(err)
	req.Equal("Bearer tok-1", seen)
}

func TestClient_UnauthorizedHook(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
	}))
	client.SetCredentialSource(staticCreds{token: "stale"})

	fired := 0
	client.SetUnauthorizedHook(func() { fired++ })

	_, err := client.Me(ctx)
	req.ErrorIs(err, apperrors.ErrUnauthorized)
	req.Equal(1, fired)
}

func TestClient_ErrorDetail(t *testing.T) {
	ctx := context.Background()

	t.Run("surfaces the server detail", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Item is not available"})
		}))

		_, err := client.ListBookings(ctx)
		req.ErrorContains(err, "Item is not available")
	})

	t.Run("falls back when the body is not the expected shape", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<html>oops</html>"))
		}))

		_, err := client.ListBookings(ctx)
		req.ErrorContains(err, "request failed")
	})
}

func TestClient_CreateBooking(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/bookings", r.URL.Path)

		var body map[string]any
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("item-1", body["item_id"])
		req.Equal(75.0, body["total_amount"])
		req.Equal("weekend trip", body["message"])

		json.NewEncoder(w).Encode(domain.Booking{ID: "b-1", Status: domain.StatusPending})
	}))

	booking, err := client.CreateBooking(ctx, domain.BookingRequest{
		ItemID:    "item-1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		Note:      "weekend trip",
	}, 75)
	req.NoError(err)
	req.Equal("b-1", booking.ID)
	req.Equal(domain.StatusPending, booking.Status)
}

func TestClient_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/messages/u-bob", r.URL.Path)
		json.NewEncoder(w).Encode([]domain.Message{
			{ID: "m-1", SenderID: "u-bob", ReceiverID: "u-alice", Content: "hi", Kind: domain.KindText},
		})
	}))

	msgs, err := client.Messages(ctx, "u-bob")
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("m-1", msgs[0].ID)
}

func TestClient_MarkRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	var path, method string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		method = r.Method
		w.Write([]byte(`{}`))
	}))

	req.NoError(client.MarkRead(ctx, "m-1"))
	req.Equal("/messages/m-1/read", path)
	req.Equal(http.MethodPut, method)
}
