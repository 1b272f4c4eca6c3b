// Package settlement is the client for the external submission channel that
// carries ledger transitions on-chain.
//
// Submission is fire-and-confirm: Submit hands a batch to the channel and
// returns a receipt; Await polls the receipt until the channel reports a
// terminal status. Retry and resubmission policy belongs to the channel, not
// to this client, and a proof whose transition was already applied must never
// be resubmitted: recover by re-querying the receipt instead.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the settlement state of a submitted batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether s is a final settlement status.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// Call is one encoded ledger operation in a batch.
type Call struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// Receipt correlates a submitted batch with its on-chain inclusion.
type Receipt struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Submitter is the narrow interface the daemon uses to settle withdrawals.
type Submitter interface {
	Submit(ctx context.Context, calls []Call) (*Receipt, error)
	Await(ctx context.Context, id string) (*Receipt, error)
}

// Client submits batches to an HTTP submission channel.
type Client struct {
	endpoint     string
	httpc        *http.Client
	log          zerolog.Logger
	pollInterval time.Duration
	gasHeadroom  float64
}

// NewClient creates a submission channel client. gasHeadroom is the
// multiplier applied by the channel to its own cost estimate; bundlers
// under-estimate verification-heavy calls, so the default is 2.0.
func NewClient(endpoint string, log zerolog.Logger) *Client {
	return &Client{
		endpoint:     endpoint,
		httpc:        &http.Client{Timeout: 30 * time.Second},
		log:          log.With().Str("component", "settlement").Logger(),
		pollInterval: 2 * time.Second,
		gasHeadroom:  2.0,
	}
}

type submitRequest struct {
	ID          string  `json:"id"`
	Calls       []Call  `json:"calls"`
	GasHeadroom float64 `json:"gas_headroom"`
}

// Submit posts a batch and returns the channel's receipt. The batch id is
// generated here so a crashed caller can still correlate its receipt.
func (c *Client) Submit(ctx context.Context, calls []Call) (*Receipt, error) {
	req := submitRequest{
		ID:          uuid.NewString(),
		Calls:       calls,
		GasHeadroom: c.gasHeadroom,
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/submit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Info().Str("batch_id", req.ID).Int("calls", len(calls)).Msg("submitting batch")
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submission channel unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submission channel returned %s", resp.Status)
	}
	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("malformed receipt: %w", err)
	}
	if receipt.ID == "" {
		receipt.ID = req.ID
	}
	return &receipt, nil
}

// Await polls the receipt until the channel reports a terminal status or ctx
// is done.
func (c *Client) Await(ctx context.Context, id string) (*Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.query(ctx, id)
		if err != nil {
			c.log.Warn().Str("batch_id", id).Err(err).Msg("receipt query failed")
		} else if receipt.Status.Terminal() {
			c.log.Info().Str("batch_id", id).Str("status", string(receipt.Status)).Msg("batch settled")
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) query(ctx context.Context, id string) (*Receipt, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/receipts/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submission channel returned %s", resp.Status)
	}
	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Null is a submitter that confirms every batch immediately. Used by tests
// and standalone deployments with no settlement layer.
type Null struct{}

// Submit returns an already confirmed receipt.
func (Null) Submit(ctx context.Context, calls []Call) (*Receipt, error) {
	return &Receipt{ID: uuid.NewString(), Status: StatusConfirmed}, nil
}

// Await returns a confirmed receipt for any id.
func (Null) Await(ctx context.Context, id string) (*Receipt, error) {
	return &Receipt{ID: id, Status: StatusConfirmed}, nil
}
