// Package ig is a minimal client for the IG Markets REST dealing API and
// the live Broker built on it.
package ig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	liveURL = "https://api.ig.com/gateway/deal"
	demoURL = "https://demo-api.ig.com/gateway/deal"

	headerAPIKey  = "X-IG-API-KEY"
	headerCST     = "CST"
	headerToken   = "X-SECURITY-TOKEN"
	headerVersion = "Version"
	headerMethod  = "_method"
)

// AuthError means IG refused our credentials or session tokens. There
// is no point retrying the cycle; the engine treats it as fatal.
type AuthError struct {
	Status int
	Code   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ig: authentication failed (%d %s)", e.Status, e.Code)
}

func (e *AuthError) Fatal() bool { return true }

// APIError is any other non-2xx answer from IG.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ig: request failed (%d %s)", e.Status, e.Code)
}

// Config carries credentials and client tuning. AccountID selects the
// dealing account when the login owns several.
type Config struct {
	APIKey     string
	Identifier string
	Password   string
	AccountID  string
	Demo       bool

	// BaseURL overrides the IG endpoint, for tests.
	BaseURL string
	Timeout time.Duration
}

// Client talks to the IG REST API. Session tokens are captured at Login
// and sent on every later request. Requests are rate limited well under
// IG's per-minute allowance.
type Client struct {
	cfg     Config
	http    *http.Client
	base    string
	limiter *rate.Limiter
	log     *zap.Logger

	cst       string
	token     string
	accountID string
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = liveURL
		if cfg.Demo {
			base = demoURL
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		base: base,
		// 30 non-trading requests per minute on the public allowance.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		log:     log,
	}
}

// Login opens a dealing session, capturing the CST and security token
// from the response headers, and returns the account snapshot.
func (c *Client) Login(ctx context.Context) (Session, error) {
	body := map[string]string{
		"identifier": c.cfg.Identifier,
		"password":   c.cfg.Password,
	}
	var out sessionResponse
	resp, err := c.do(ctx, http.MethodPost, "/session", 2, body, &out, false)
	if err != nil {
		return Session{}, err
	}
	c.cst = resp.Header.Get(headerCST)
	c.token = resp.Header.Get(headerToken)
	c.accountID = c.cfg.AccountID
	if c.accountID == "" {
		c.accountID = out.CurrentAccountID
	}
	c.log.Info("ig session opened",
		zap.String("account", c.accountID),
		zap.String("currency", out.CurrencyISOCode))
	return Session{
		AccountID: c.accountID,
		Currency:  out.CurrencyISOCode,
		Balance:   out.AccountInfo.Balance,
	}, nil
}

// do sends one request. The session flag controls whether the CST and
// security token headers are attached; Login is the only caller that
// goes without them.
func (c *Client) do(ctx context.Context, method, path string, version int, in, out interface{}, session bool, extra ...func(*http.Request)) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "ig: encode request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "ig: build request")
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	req.Header.Set(headerAPIKey, c.cfg.APIKey)
	req.Header.Set(headerVersion, fmt.Sprintf("%d", version))
	if session {
		req.Header.Set(headerCST, c.cst)
		req.Header.Set(headerToken, c.token)
	}
	for _, f := range extra {
		f(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "ig: %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			ErrorCode string `json:"errorCode"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return resp, &AuthError{Status: resp.StatusCode, Code: apiErr.ErrorCode}
		}
		return resp, &APIError{Status: resp.StatusCode, Code: apiErr.ErrorCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, errors.Wrapf(err, "ig: decode %s %s", method, path)
		}
	}
	return resp, nil
}
