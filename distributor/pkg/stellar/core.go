package stellar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/Stellar-Pool/stellar-pool-service/utils/pkg/retry"
)

const (
	DefaultCoreURL     = "http://localhost:11626"
	defaultCoreTimeout = 30 * time.Second
)

// Statuses returned by the stellar-core "tx" command.
const (
	coreStatusPending       = "PENDING"
	coreStatusDuplicate     = "DUPLICATE"
	coreStatusError         = "ERROR"
	coreStatusTryAgainLater = "TRY_AGAIN_LATER"
)

// AccountSource loads accounts for a network that cannot do it itself.
type AccountSource interface {
	AccountOf(ctx context.Context, address string) (txnbuild.SimpleAccount, error)
}

type CoreConfig struct {
	Logger     *slog.Logger
	URL        string
	Passphrase string
	// Accounts loads sequence numbers; stellar-core's command port does not
	// serve them.
	Accounts   AccountSource
	HTTPClient *http.Client
	Retry      retry.Config
}

func (cfg *CoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Passphrase == "" {
		return errors.New("network passphrase is required")
	}
	if cfg.Accounts == nil {
		return errors.New("account source is required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultCoreURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return fmt.Errorf("invalid core url: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultCoreTimeout}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// CoreNetwork submits transaction envelopes to the HTTP command port of a
// stellar-core node.
type CoreNetwork struct {
	log *slog.Logger
	cfg CoreConfig
}

func NewCoreNetwork(cfg CoreConfig) (*CoreNetwork, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CoreNetwork{log: cfg.Logger, cfg: cfg}, nil
}

func (c *CoreNetwork) Passphrase() string {
	return c.cfg.Passphrase
}

func (c *CoreNetwork) AccountOf(ctx context.Context, address string) (txnbuild.SimpleAccount, error) {
	return c.cfg.Accounts.AccountOf(ctx, address)
}

type coreTxResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type coreHTTPError struct {
	status int
	body   string
}

func (e *coreHTTPError) Error() string {
	return fmt.Sprintf("stellar-core returned status %d: %s", e.status, e.body)
}

func (e *coreHTTPError) StatusCode() int { return e.status }

func (c *CoreNetwork) SubmitTransaction(ctx context.Context, tx *txnbuild.Transaction) error {
	blob, err := tx.Base64()
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	return retry.Do(ctx, c.cfg.Retry, func() error {
		return c.submit(ctx, blob)
	})
}

func (c *CoreNetwork) submit(ctx context.Context, blob string) error {
	endpoint := strings.TrimSuffix(c.cfg.URL, "/") + "/tx?blob=" + url.QueryEscape(blob)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read stellar-core response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &coreHTTPError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var out coreTxResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to decode stellar-core response: %w", err)
	}
	switch out.Status {
	case coreStatusPending:
		return nil
	case coreStatusDuplicate:
		c.log.Warn("core: transaction already submitted")
		return nil
	case coreStatusTryAgainLater:
		return &ResultError{Code: coreStatusTryAgainLater, retryable: true}
	case coreStatusError:
		return &ResultError{Code: decodeResultCode(out.Error)}
	default:
		return &ResultError{Code: out.Status}
	}
}

// decodeResultCode extracts the transaction result code from the base64 XDR
// TransactionResult stellar-core attaches to an ERROR status.
func decodeResultCode(encoded string) string {
	if encoded == "" {
		return coreStatusError
	}
	var result xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(encoded, &result); err != nil {
		return coreStatusError + " " + encoded
	}
	return result.Result.Code.String()
}
