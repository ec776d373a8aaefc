// Package gateway is the HTTP client for the remote raffle service, the
// source of truth for raffles and number ownership.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"raffle-storefront/internal/model"
)

const (
	defaultPageSize = 100
	maxPages        = 1000
	maxBodyBytes    = 4 << 20
)

// ErrNoSession is returned when a session-scoped call has no bearer token,
// typically because the session was torn down at logout.
var ErrNoSession = errors.New("no active session")

// TokenSource supplies the bearer token for the current session.
type TokenSource interface {
	Token() string
}

// Client talks to the raffle service. It owns no raffle state.
type Client struct {
	baseURL  string
	pageSize int
	client   *http.Client
}

// NewClient creates a raffle service client.
func NewClient(baseURL string, timeout time.Duration, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
	}
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is what the raffle service returns on login.
type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	if _, err := c.do(ctx, http.MethodPost, "/v1/auth/login", "", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	return &out, nil
}

// RefreshToken rotates a bearer token.
func (c *Client) RefreshToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	var out struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", token, nil, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("refresh response carried no token")
	}
	return out.Token, nil
}

// ForSession binds the client to a session's token.
func (c *Client) ForSession(src TokenSource) *SessionClient {
	return &SessionClient{client: c, tokens: src}
}

// SessionClient performs authenticated raffle calls on behalf of one session.
type SessionClient struct {
	client *Client
	tokens TokenSource
}

// NumberPage is one page of the number listing.
type NumberPage struct {
	Numbers []model.RaffleNumber
	Meta    PageMeta
}

type numberRequest struct {
	Number string `json:"number"`
}

func (s *SessionClient) token() (string, error) {
	if s.tokens == nil {
		return "", ErrNoSession
	}
	tok := s.tokens.Token()
	if tok == "" {
		return "", ErrNoSession
	}
	return tok, nil
}

func rafflePath(raffleID string, suffix string) string {
	return "/v1/raffles/" + url.PathEscape(raffleID) + suffix
}

// GetRaffle fetches the raffle itself, including its active flag.
func (s *SessionClient) GetRaffle(ctx context.Context, raffleID string) (model.Raffle, error) {
	tok, err := s.token()
	if err != nil {
		return model.Raffle{}, err
	}
	var out model.Raffle
	if _, err := s.client.do(ctx, http.MethodGet, rafflePath(raffleID, ""), tok, nil, &out); err != nil {
		return model.Raffle{}, err
	}
	if out.ID == "" {
		out.ID = raffleID
	}
	return out, nil
}

// ListNumbers fetches one page of numbers. Pages start at 1. Meta.Total is
// zero when the service omits pagination metadata.
func (s *SessionClient) ListNumbers(ctx context.Context, raffleID string, page, size int) (NumberPage, error) {
	tok, err := s.token()
	if err != nil {
		return NumberPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.client.pageSize
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var numbers []model.RaffleNumber
	meta, err := s.client.do(ctx, http.MethodGet, rafflePath(raffleID, "/numbers")+"?"+q.Encode(), tok, nil, &numbers)
	if err != nil {
		return NumberPage{}, err
	}

	for i := range numbers {
		if numbers[i].RaffleID == "" {
			numbers[i].RaffleID = raffleID
		}
	}

	result := NumberPage{Numbers: numbers, Meta: PageMeta{Page: page, Limit: size}}
	if meta != nil {
		result.Meta = *meta
	}
	return result, nil
}

// ListAllNumbers walks every page and returns the whole list.
func (s *SessionClient) ListAllNumbers(ctx context.Context, raffleID string) ([]model.RaffleNumber, error) {
	size := s.client.pageSize
	var all []model.RaffleNumber

	for page := 1; page <= maxPages; page++ {
		p, err := s.ListNumbers(ctx, raffleID, page, size)
		if err != nil {
			return nil, fmt.Errorf("failed to list numbers page %d: %w", page, err)
		}
		all = append(all, p.Numbers...)

		if len(p.Numbers) < size || (p.Meta.Total > 0 && int64(len(all)) >= p.Meta.Total) {
			break
		}
	}
	return all, nil
}

// Reserve claims a number for the session's actor.
func (s *SessionClient) Reserve(ctx context.Context, raffleID string, number int) error {
	return s.numberCall(ctx, raffleID, "/numbers/reserve", number)
}

// Unreserve releases the actor's claim on a number.
func (s *SessionClient) Unreserve(ctx context.Context, raffleID string, number int) error {
	return s.numberCall(ctx, raffleID, "/numbers/unreserve", number)
}

// Sell marks a reserved number as sold.
func (s *SessionClient) Sell(ctx context.Context, raffleID string, number int) error {
	return s.numberCall(ctx, raffleID, "/numbers/sold", number)
}

func (s *SessionClient) numberCall(ctx context.Context, raffleID, suffix string, number int) error {
	tok, err := s.token()
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, http.MethodPost, rafflePath(raffleID, suffix), tok, numberRequest{Number: strconv.Itoa(number)}, nil)
	return err
}

// do performs one round trip and unwraps the envelope into out.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) (*PageMeta, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raffle service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			return nil, nil
		}
		return nil, rejection(resp.StatusCode, nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if !ok {
			return nil, rejection(resp.StatusCode, nil)
		}
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if !ok || !env.Success {
		return nil, rejection(resp.StatusCode, &env)
	}
	if err := decodeData(&env, out); err != nil {
		return nil, err
	}
	return env.Meta, nil
}
