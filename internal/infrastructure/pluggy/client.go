package pluggy

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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"finsync/internal/shared/clock"
)

const (
	DefaultBaseURL = "https://api.pluggy.ai"
	defaultTimeout = 30 * time.Second

	apiKeyHeader = "X-API-KEY"

	authPath         = "/auth"
	accountsPath     = "/accounts"
	transactionsPath = "/transactions"
	billsPath        = "/bills"
	investmentsPath  = "/investments"
	itemsPath        = "/items"

	dateLayout = "2006-01-02"
)

var tracer = otel.Tracer("finsync/pluggy")

// Config holds what the client needs to reach the aggregator.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	RateLimit    float64 // requests per second, 0 disables throttling
	RateBurst    int
	Clock        clock.Clock
	HTTPClient   *http.Client
}

// Client talks to the Pluggy REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	credentials  *CredentialCache
	limiter      *rate.Limiter
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a client with its own credential cache.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c.credentials = NewCredentialCache(c, cfg.Clock)

	return c
}

// Credentials exposes the client's token cache.
func (c *Client) Credentials() *CredentialCache {
	return c.credentials
}

// Authenticate exchanges the client id and secret for an API key.
// Rejected credentials return an error wrapping ErrAuth.
func (c *Client) Authenticate(ctx context.Context) (*Token, error) {
	var tok Token
	err := c.send(ctx, "authenticate", http.MethodPost, authPath, nil,
		authRequest{ClientID: c.clientID, ClientSecret: c.clientSecret}, "", &tok)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if tok.APIKey == "" {
		return nil, fmt.Errorf("%w: auth response has no apiKey", ErrAuth)
	}
	return &tok, nil
}

// ListAccounts returns every account under an item.
func (c *Client) ListAccounts(ctx context.Context, itemID string) ([]Account, error) {
	var page Page[Account]
	query := url.Values{"itemId": {itemID}}
	if err := c.call(ctx, "list_accounts", http.MethodGet, accountsPath, query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list accounts for item %s: %w", itemID, err)
	}
	return page.Results, nil
}

// ListTransactions returns one page of an account's transactions.
func (c *Client) ListTransactions(ctx context.Context, accountID string, q TransactionQuery) (*Page[Transaction], error) {
	query := url.Values{"accountId": {accountID}}
	if q.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if !q.From.IsZero() {
		query.Set("from", q.From.Format(dateLayout))
	}
	if !q.To.IsZero() {
		query.Set("to", q.To.Format(dateLayout))
	}

	var page Page[Transaction]
	if err := c.call(ctx, "list_transactions", http.MethodGet, transactionsPath, query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}
	return &page, nil
}

// ListCreditCardAccounts returns the credit card accounts of an item.
// An item without the product yields an empty list.
func (c *Client) ListCreditCardAccounts(ctx context.Context, itemID string) ([]Account, error) {
	accounts, err := c.ListAccounts(ctx, itemID)
	if err != nil {
		if IsNotFound(err) {
			return []Account{}, nil
		}
		return nil, err
	}

	cards := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.IsCreditCard() {
			cards = append(cards, acc)
		}
	}
	return cards, nil
}

// ListInvoices returns the bills of a credit card account.
// A card without bills support yields an empty list.
func (c *Client) ListInvoices(ctx context.Context, cardID string) ([]Invoice, error) {
	var page Page[Invoice]
	query := url.Values{"accountId": {cardID}}
	if err := c.call(ctx, "list_invoices", http.MethodGet, billsPath, query, nil, &page); err != nil {
		if IsNotFound(err) {
			return []Invoice{}, nil
		}
		return nil, fmt.Errorf("failed to list invoices for card %s: %w", cardID, err)
	}
	return page.Results, nil
}

// ListInvestments returns every investment of an item, following pagination.
// An item without the product yields an empty list.
func (c *Client) ListInvestments(ctx context.Context, itemID string) ([]Investment, error) {
	var all []Investment
	for pageNum := 1; ; pageNum++ {
		var page Page[Investment]
		query := url.Values{"itemId": {itemID}, "page": {strconv.Itoa(pageNum)}}
		if err := c.call(ctx, "list_investments", http.MethodGet, investmentsPath, query, nil, &page); err != nil {
			if IsNotFound(err) {
				return []Investment{}, nil
			}
			return nil, fmt.Errorf("failed to list investments for item %s: %w", itemID, err)
		}
		all = append(all, page.Results...)
		if pageNum >= page.TotalPages {
			break
		}
	}
	if all == nil {
		all = []Investment{}
	}
	return all, nil
}

// TriggerRefresh asks the aggregator to pull fresh data from the institution.
func (c *Client) TriggerRefresh(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if err := c.call(ctx, "trigger_refresh", http.MethodPatch, itemsPath+"/"+url.PathEscape(itemID), nil, struct{}{}, &item); err != nil {
		return nil, fmt.Errorf("failed to refresh item %s: %w", itemID, err)
	}
	return &item, nil
}

// Revoke deletes the item on the aggregator side.
func (c *Client) Revoke(ctx context.Context, itemID string) error {
	if err := c.call(ctx, "revoke", http.MethodDelete, itemsPath+"/"+url.PathEscape(itemID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to revoke item %s: %w", itemID, err)
	}
	return nil
}

// call performs an authenticated request. A 401 drops the cached token and
// is reported as ErrAuth.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := c.credentials.Token(ctx)
	if err != nil {
		return err
	}

	err = c.send(ctx, op, method, path, query, body, token, out)
	if StatusCode(err) == http.StatusUnauthorized {
		c.credentials.Invalidate()
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body any, token string, out any) error {
	ctx, span := tracer.Start(ctx, "pluggy."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("pluggy.path", path),
	))
	defer span.End()

	err := c.roundTrip(ctx, span, method, path, query, body, token, out)
	if err != nil && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, span trace.Span, method, path string, query url.Values, body any, token string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(apiKeyHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
