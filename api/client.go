// Package api is the typed REST client for the marketplace backend. It
// implements the contract.AuthAPI, contract.BookingAPI and
// contract.MessageAPI surfaces consumed by the core components.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rentloop/contract"
	"rentloop/domain"
	apperrors "rentloop/errors"
)

// Client talks to the backend over HTTP. The bearer credential is read from
// the CredentialSource on every request, never cached. A 401 response
// invokes the unauthorized hook before the error is returned.
type Client struct {
	http    *http.Client
	baseURL string
	log     *slog.Logger

	creds          contract.CredentialSource
	onUnauthorized func()
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// SetCredentialSource wires the session in after construction; the session
// itself depends on this client, so the cycle is broken here.
func (c *Client) SetCredentialSource(src contract.CredentialSource) {
	c.creds = src
}

// SetUnauthorizedHook registers the callback fired on any 401 response.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.onUnauthorized = fn
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        domain.Identity `json:"user"`
}

// errorBody matches the backend's error shape.
type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.Identity, string, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return domain.Identity{}, "", err
	}
	return resp.User, resp.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.Identity, string, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", reg, &resp); err != nil {
		return domain.Identity{}, "", err
	}
	return resp.User, resp.AccessToken, nil
}

func (c *Client) Me(ctx context.Context) (domain.Identity, error) {
	var identity domain.Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &identity); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Identity, error) {
	var identity domain.Identity
	if err := c.do(ctx, http.MethodPut, "/auth/profile", update, &identity); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

func (c *Client) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	var bookings []domain.Booking
	if err := c.do(ctx, http.MethodGet, "/bookings", nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

type createBookingRequest struct {
	ItemID      string    `json:"item_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	TotalAmount float64   `json:"total_amount"`
	Note        string    `json:"message,omitempty"`
}

func (c *Client) CreateBooking(ctx context.Context, req domain.BookingRequest, totalAmount float64) (domain.Booking, error) {
	body := createBookingRequest{
		ItemID:      req.ItemID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TotalAmount: totalAmount,
		Note:        req.Note,
	}
	var booking domain.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", body, &booking); err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

type updateBookingRequest struct {
	Status domain.BookingStatus `json:"status"`
	Note   string               `json:"message,omitempty"`
}

func (c *Client) UpdateBooking(ctx context.Context, id string, status domain.BookingStatus, note string) (domain.Booking, error) {
	var booking domain.Booking
	err := c.do(ctx, http.MethodPut, "/bookings/"+id, updateBookingRequest{Status: status, Note: note}, &booking)
	if err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

func (c *Client) Messages(ctx context.Context, otherUserID string) ([]domain.Message, error) {
	var messages []domain.Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+otherUserID, nil, &messages); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrFetchFailed, err)
	}
	return messages, nil
}

func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	if err := c.do(ctx, http.MethodPut, "/messages/"+messageID+"/read", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrFetchFailed, err)
	}
	return nil
}

// do executes one request. A non-nil out is decoded from the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Login and register are the only anonymous endpoints. A 401 from them
	// means bad credentials, not an expired session, so the unauthorized
	// hook must not fire for those paths.
	authenticated := path != "/auth/login" && path != "/auth/register"
	if authenticated && c.creds != nil {
		if token, ok := c.creds.Credential(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn("Request rejected as unauthorized", "method", method, "path", path)
		if authenticated && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		if !authenticated {
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidCredentials, c.reason(resp.Body))
		}
		return fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, c.reason(resp.Body))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s", method, path, c.reason(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// reason extracts the server-supplied detail string, falling back to a
// generic message when the body is not the expected shape.
func (c *Client) reason(body io.Reader) string {
	var eb errorBody
	if err := json.NewDecoder(body).Decode(&eb); err == nil && eb.Detail != "" {
		return eb.Detail
	}
	return "request failed"
}
