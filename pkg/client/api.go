package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// --- auth ---

type authResult struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Register creates a user and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, email, password string) error {
	var out authResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "password": password}, &out, false)
	if err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out authResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &out, false)
	if err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// --- accounts ---

// PhaseLimits are explicit rules for accounts created without a template.
type PhaseLimits struct {
	ProfitTarget Limit  `json:"profit_target"`
	DailyLimit   Limit  `json:"daily_limit"`
	MaxLimit     Limit  `json:"max_limit"`
	DrawdownMode string `json:"drawdown_mode"`
}

// CreateAccountParams registers a new account. Prop-firm accounts need
// either Template or Phase.
type CreateAccountParams struct {
	Number          string          `json:"number"`
	Name            string          `json:"name,omitempty"`
	Broker          string          `json:"broker,omitempty"`
	Type            string          `json:"type"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	Template        string          `json:"template,omitempty"`
	Phase           *PhaseLimits    `json:"phase,omitempty"`
}

func (c *Client) CreateAccount(ctx context.Context, p CreateAccountParams) (Account, error) {
	var out Account
	err := c.do(ctx, http.MethodPost, "/api/accounts", p, &out, false)
	return out, err
}

func (c *Client) Accounts(ctx context.Context) ([]Overview, error) {
	var out []Overview
	err := c.get(ctx, "/api/accounts", &out)
	return out, err
}

func (c *Client) Account(ctx context.Context, id string) (Overview, error) {
	var out Overview
	err := c.get(ctx, "/api/accounts/"+id, &out)
	return out, err
}

func (c *Client) UpdateAccount(ctx context.Context, id, name, broker string) (Account, error) {
	var out Account
	err := c.do(ctx, http.MethodPatch, "/api/accounts/"+id,
		map[string]string{"name": name, "broker": broker}, &out, true)
	return out, err
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/accounts/"+id, nil, nil, true)
}

func (c *Client) Metrics(ctx context.Context, id string) (Overview, error) {
	var out Overview
	err := c.get(ctx, "/api/accounts/"+id+"/metrics", &out)
	return out, err
}

func (c *Client) Equity(ctx context.Context, id string) ([]EquityPoint, error) {
	var out []EquityPoint
	err := c.get(ctx, "/api/accounts/"+id+"/equity", &out)
	return out, err
}

func (c *Client) Events(ctx context.Context, id string) ([]Event, error) {
	var out []Event
	err := c.get(ctx, "/api/accounts/"+id+"/events", &out)
	return out, err
}

// --- prop-firm ---

func (c *Client) PropAccounts(ctx context.Context) ([]Overview, error) {
	var out []Overview
	err := c.get(ctx, "/api/prop-firm/accounts", &out)
	return out, err
}

// Reset restarts an evaluation. Safe to retry: a reset of a fresh account
// is a no-op from the rules' point of view.
func (c *Client) Reset(ctx context.Context, id string) (Account, error) {
	var out Account
	err := c.do(ctx, http.MethodPost, "/api/prop-firm/accounts/"+id+"/reset", nil, &out, true)
	return out, err
}

// Advance moves the account to its next phase. Safe to retry: a repeated
// advance fails validation instead of double-advancing.
func (c *Client) Advance(ctx context.Context, id string) (Phase, error) {
	var out Phase
	err := c.do(ctx, http.MethodPost, "/api/prop-firm/accounts/"+id+"/advance", nil, &out, true)
	return out, err
}

func (c *Client) Templates(ctx context.Context) ([]Template, error) {
	var out []Template
	err := c.get(ctx, "/api/prop-firm/templates", &out)
	return out, err
}

// --- trades ---

// TradeQuery narrows Trades listings. Zero values mean no constraint.
type TradeQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

type tradesResult struct {
	Trades []Trade `json:"trades"`
	Stats  Stats   `json:"stats"`
}

func (c *Client) Trades(ctx context.Context, accountID string, q TradeQuery) ([]Trade, Stats, error) {
	v := url.Values{"account": {accountID}}
	if !q.From.IsZero() {
		v.Set("from", q.From.Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.Format(time.RFC3339))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var out tradesResult
	err := c.get(ctx, "/api/trades?"+v.Encode(), &out)
	return out.Trades, out.Stats, err
}

// NewTradeParams is a manually entered trade.
type NewTradeParams struct {
	AccountID  string          `json:"account_id"`
	Instrument string          `json:"instrument"`
	Side       string          `json:"side,omitempty"`
	Quantity   decimal.Decimal `json:"quantity,omitempty"`
	EntryPrice decimal.Decimal `json:"entry_price,omitempty"`
	ClosePrice decimal.Decimal `json:"close_price,omitempty"`
	EntryTime  time.Time       `json:"entry_time,omitempty"`
	CloseTime  time.Time       `json:"close_time"`
	PnL        decimal.Decimal `json:"pnl"`
	Commission decimal.Decimal `json:"commission,omitempty"`
	Swap       decimal.Decimal `json:"swap,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// AddTrade records a manual trade. Not retried: a retry after an ambiguous
// failure would either duplicate or be rejected by dedup depending on the
// trade's fields.
func (c *Client) AddTrade(ctx context.Context, p NewTradeParams) (Trade, error) {
	body := map[string]any{
		"account_id": p.AccountID,
		"instrument": p.Instrument,
		"close_time": p.CloseTime,
		"pnl":        p.PnL.String(),
	}
	if p.Side != "" {
		body["side"] = p.Side
	}
	if !p.Quantity.IsZero() {
		body["quantity"] = p.Quantity.String()
	}
	if !p.EntryPrice.IsZero() {
		body["entry_price"] = p.EntryPrice.String()
	}
	if !p.ClosePrice.IsZero() {
		body["close_price"] = p.ClosePrice.String()
	}
	if !p.EntryTime.IsZero() {
		body["entry_time"] = p.EntryTime
	}
	if !p.Commission.IsZero() {
		body["commission"] = p.Commission.String()
	}
	if !p.Swap.IsZero() {
		body["swap"] = p.Swap.String()
	}
	if len(p.Tags) > 0 {
		body["tags"] = p.Tags
	}
	if p.Notes != "" {
		body["notes"] = p.Notes
	}

	var out Trade
	err := c.do(ctx, http.MethodPost, "/api/trades", body, &out, false)
	return out, err
}

func (c *Client) Annotate(ctx context.Context, tradeID string, tags []string, notes string) (Trade, error) {
	var out Trade
	err := c.do(ctx, http.MethodPatch, "/api/trades/"+tradeID+"/annotations",
		map[string]any{"tags": tags, "notes": notes}, &out, true)
	return out, err
}

// --- imports ---

// Import commits a platform export to an account. Never retried: a retry
// after an ambiguous failure could double-import rows without external ids.
func (c *Client) Import(ctx context.Context, accountID, platform, fileName string, file io.Reader, overrides map[string]int) (ImportBatch, error) {
	var out ImportBatch
	err := c.upload(ctx, "/api/import", accountID, platform, fileName, file, overrides, &out)
	return out, err
}

// PreviewImport parses an export without persisting anything.
func (c *Client) PreviewImport(ctx context.Context, platform, fileName string, file io.Reader, overrides map[string]int) (ImportPreview, error) {
	var out ImportPreview
	err := c.upload(ctx, "/api/import/preview", "", platform, fileName, file, overrides, &out)
	return out, err
}

func (c *Client) upload(ctx context.Context, path, accountID, platform, fileName string, file io.Reader, overrides map[string]int, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if accountID != "" {
		if err := w.WriteField("account", accountID); err != nil {
			return err
		}
	}
	if platform != "" {
		if err := w.WriteField("platform", platform); err != nil {
			return err
		}
	}
	if len(overrides) > 0 {
		raw, err := json.Marshal(overrides)
		if err != nil {
			return err
		}
		if err := w.WriteField("mapping", string(raw)); err != nil {
			return err
		}
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return fmt.Errorf("reading %s: %w", fileName, err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// PlatformInfo describes one import processor.
type PlatformInfo struct {
	Name   string `json:"name"`
	Schema []struct {
		Name     string   `json:"name"`
		Aliases  []string `json:"aliases"`
		Required bool     `json:"required"`
	} `json:"schema"`
}

func (c *Client) Platforms(ctx context.Context) ([]PlatformInfo, error) {
	var out []PlatformInfo
	err := c.get(ctx, "/api/import/platforms", &out)
	return out, err
}
