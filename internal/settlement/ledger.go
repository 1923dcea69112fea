// Package settlement hands finished sessions to the external value-custody
// collaborator, exactly once per session, without ever stalling gameplay.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Ledger is the custody collaborator. Resolve pays the winner (2x stake)
// or, with an empty winner address, refunds both sides — the draw path.
// Cancel refunds a never-paired lobby's creator.
type Ledger interface {
	Resolve(ctx context.Context, escrowRef, winnerAddress string) error
	Cancel(ctx context.Context, escrowRef string) error
}

// NopLedger is used when no escrow service is configured (friendly-only
// deployments).
type NopLedger struct{}

func (NopLedger) Resolve(context.Context, string, string) error { return nil }
func (NopLedger) Cancel(context.Context, string) error          { return nil }

// EscrowClient talks to the resolver service that holds the authority to
// move escrowed funds on chain.
type EscrowClient struct {
	baseURL string
	apiKey  string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewEscrowClient(baseURL, apiKey string) *EscrowClient {
	return &EscrowClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &fasthttp.Client{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			MaxConnsPerHost: 16,
		},
		timeout: 15 * time.Second,
	}
}

type resolveRequest struct {
	EscrowRef string `json:"escrow_ref"`
	Winner    string `json:"winner,omitempty"`
}

func (c *EscrowClient) Resolve(ctx context.Context, escrowRef, winnerAddress string) error {
	return c.post(ctx, "/resolve", resolveRequest{EscrowRef: escrowRef, Winner: winnerAddress})
}

func (c *EscrowClient) Cancel(ctx context.Context, escrowRef string) error {
	return c.post(ctx, "/cancel", resolveRequest{EscrowRef: escrowRef})
}

func (c *EscrowClient) post(ctx context.Context, path string, in any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("escrow request: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("escrow api error: status=%d body=%s", status, truncate(string(resp.Body()), 256))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
