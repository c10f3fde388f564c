package fiatrail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/atlaspay-io/atlaspay-backend/pkg/config"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/logger"
)

var (
	errAPIKeyRequired  = errors.New("fiat rail api key is required")
	errBaseURLRequired = errors.New("fiat rail base url is required")
	errLoggerRequired  = errors.New("fiat rail logger is required")
)

// Client wraps the external bank-rail HTTP API with auth, retries, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	logger     *logger.Logger
}

// DepositParams describes one outbound bank transfer.
type DepositParams struct {
	BankAccountID  string `json:"bank_account_id"`
	AmountUSDCents int64  `json:"amount_usd_cents"`
	Currency       string `json:"currency"`
	Reference      string `json:"reference"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Deposit is the rail's view of a created transfer.
type Deposit struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

// NewClient validates the credentials and builds the rail wrapper.
func NewClient(ctx context.Context, cfg config.FiatRailConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		// With the simulation fallback enabled the rail's 401s are absorbed
		// into simulated payouts, so missing credentials must not block boot.
		if !cfg.SimulateOnFailure {
			return nil, errAPIKeyRequired
		}
		logg.Warn(ctx, "fiat rail api key missing, deposits will rely on the simulation fallback")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		logger:     logg,
	}

	logg.Info(ctx, "fiat rail client initialized")
	return c, nil
}

// NewIdempotencyKey returns a unique key for rail operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "ap"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateDeposit initiates a bank transfer, retrying transient failures with
// exponential backoff before giving up.
func (c *Client) CreateDeposit(ctx context.Context, params DepositParams) (*Deposit, error) {
	if params.BankAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank account id is required")
	}
	if params.AmountUSDCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}
	if params.Currency == "" {
		params.Currency = "USD"
	}
	if strings.TrimSpace(params.IdempotencyKey) == "" {
		params.IdempotencyKey = c.NewIdempotencyKey("deposit.create")
	}

	c.log(ctx, "request", "create_deposit", map[string]any{
		"bank_account_id": params.BankAccountID,
		"amount_cents":    params.AmountUSDCents,
		"reference":       params.Reference,
	})

	var deposit *Deposit
	operation := func() error {
		var err error
		deposit, err = c.postDeposit(ctx, params)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		c.log(ctx, "error", "create_deposit", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_deposit", map[string]any{
		"transfer_id": deposit.TransferID,
		"status":      deposit.Status,
	})
	return deposit, nil
}

func (c *Client) postDeposit(ctx context.Context, params DepositParams) (*Deposit, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode deposit request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/deposits", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build deposit request"))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", params.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retryable.
		return nil, pkgerrors.Wrap(pkgerrors.CodeRailFailure, err, "fiat rail unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRailFailure, err, "read deposit response")
	}

	if resp.StatusCode >= 500 {
		return nil, pkgerrors.New(pkgerrors.CodeRailFailure, fmt.Sprintf("fiat rail returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(c.mapClientError(resp.StatusCode, payload))
	}

	var deposit Deposit
	if err := json.Unmarshal(payload, &deposit); err != nil {
		return nil, backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode deposit response"))
	}
	if deposit.TransferID == "" {
		return nil, backoff.Permanent(pkgerrors.New(pkgerrors.CodeDependency, "fiat rail response missing transfer id"))
	}
	return &deposit, nil
}

// GetDeposit looks up a previously created transfer by id.
func (c *Client) GetDeposit(ctx context.Context, transferID string) (*Deposit, error) {
	if strings.TrimSpace(transferID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/deposits/"+transferID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build deposit lookup")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRailFailure, err, "fiat rail unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRailFailure, err, "read deposit response")
	}
	if resp.StatusCode >= 500 {
		return nil, pkgerrors.New(pkgerrors.CodeRailFailure, fmt.Sprintf("fiat rail returned %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transfer not found")
	}
	if resp.StatusCode >= 400 {
		return nil, c.mapClientError(resp.StatusCode, payload)
	}

	var deposit Deposit
	if err := json.Unmarshal(payload, &deposit); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode deposit response")
	}
	return &deposit, nil
}

func (c *Client) mapClientError(status int, payload []byte) error {
	var body struct {
		Message string `json:"message"`
	}
	message := fmt.Sprintf("fiat rail rejected request (%d)", status)
	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		message = body.Message
	}
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	case http.StatusConflict:
		return pkgerrors.New(pkgerrors.CodeIdempotency, message)
	case http.StatusUnprocessableEntity:
		return pkgerrors.New(pkgerrors.CodeStateConflict, message)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("fiat rail %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("fiat rail %s", phase))
	}
}
