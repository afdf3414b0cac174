package coordinator

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/signaloracle/mpccore/pkg/mpcerr"
	"github.com/signaloracle/mpccore/pkg/wire"
)

// PeerClient is everything the coordinator needs to drive one peer
// through the session lifecycle. It is an interface so tests can supply
// an in-process fake instead of a real HTTP round trip.
type PeerClient interface {
	Init(ctx context.Context, baseURL string, req wire.InitRequest) (wire.InitResponse, error)
	ComputeGate(ctx context.Context, baseURL string, req wire.ComputeGateRequest) (wire.ComputeGateResponse, error)
	Result(ctx context.Context, baseURL string, req wire.ResultRequest) error
	Abort(ctx context.Context, baseURL string, req wire.AbortRequest) error
}

// HTTPPeerClient is the production PeerClient: JSON over HTTPS with a
// shared, internally thread-safe *http.Client, per-call PEER_TIMEOUT, and
// retry with exponential backoff + jitter on 5xx/network errors only.
type HTTPPeerClient struct {
	HTTP        *http.Client
	PeerTimeout time.Duration
	MaxRetries  int
}

// NewHTTPPeerClient builds a client with the given per-request timeout
// and retry budget, backed by a single shared *http.Client.
func NewHTTPPeerClient(peerTimeout time.Duration, maxRetries int) *HTTPPeerClient {
	return &HTTPPeerClient{
		HTTP:        &http.Client{Timeout: peerTimeout},
		PeerTimeout: peerTimeout,
		MaxRetries:  maxRetries,
	}
}

func (c *HTTPPeerClient) postJSON(ctx context.Context, url string, body, out interface{}) error {
	return withRetry(c.MaxRetries, func(attempt int) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.PeerTimeout)
		defer cancel()

		payload, err := json.Marshal(body)
		if err != nil {
			return mpcerr.Wrap(mpcerr.InvalidInput, "marshaling peer request", err)
		}
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return mpcerr.Wrap(mpcerr.PeerPermanent, "building peer request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return mpcerr.Wrap(mpcerr.PeerTransient, "peer request failed", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mpcerr.Wrap(mpcerr.PeerTransient, "reading peer response", err)
		}

		switch {
		case resp.StatusCode >= 500:
			return mpcerr.New(mpcerr.PeerTransient, fmt.Sprintf("peer returned %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return mpcerr.New(mpcerr.PeerPermanent, fmt.Sprintf("peer returned %d", resp.StatusCode))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return mpcerr.Wrap(mpcerr.PeerPermanent, "decoding peer response", err)
			}
		}
		return nil
	})
}

// Init implements PeerClient.
func (c *HTTPPeerClient) Init(ctx context.Context, baseURL string, req wire.InitRequest) (wire.InitResponse, error) {
	var out wire.InitResponse
	err := c.postJSON(ctx, baseURL+"/mpc/init", req, &out)
	return out, err
}

// ComputeGate implements PeerClient.
func (c *HTTPPeerClient) ComputeGate(ctx context.Context, baseURL string, req wire.ComputeGateRequest) (wire.ComputeGateResponse, error) {
	var out wire.ComputeGateResponse
	err := c.postJSON(ctx, baseURL+"/mpc/compute_gate", req, &out)
	return out, err
}

// Result implements PeerClient.
func (c *HTTPPeerClient) Result(ctx context.Context, baseURL string, req wire.ResultRequest) error {
	return c.postJSON(ctx, baseURL+"/mpc/result", req, nil)
}

// Abort implements PeerClient.
func (c *HTTPPeerClient) Abort(ctx context.Context, baseURL string, req wire.AbortRequest) error {
	return c.postJSON(ctx, baseURL+"/mpc/abort", req, nil)
}

// withRetry runs fn, retrying up to maxRetries additional times on
// PeerTransient errors only, with exponential backoff plus jitter.
// PeerPermanent (4xx) and any non-mpcerr error are returned immediately.
func withRetry(maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !mpcerr.Is(err, mpcerr.PeerTransient) {
			return err
		}
		if attempt < maxRetries {
			if sleepErr := sleepBackoff(attempt); sleepErr != nil {
				return sleepErr
			}
		}
	}
	return lastErr
}

func sleepBackoff(attempt int) error {
	base := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	jitter, err := rand.Int(rand.Reader, big.NewInt(int64(base/2+1)))
	if err != nil {
		return mpcerr.Wrap(mpcerr.FieldError, "generating backoff jitter", err)
	}
	time.Sleep(base + time.Duration(jitter.Int64()))
	return nil
}
