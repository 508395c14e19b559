// Package booking asks an external scheduling service whether two parties may call now.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dkeye/Voice/internal/domain"
)

// Gate implements core.BookingGate against an HTTP endpoint answering
// GET <url>?caller=<id>&receiver=<id> with {"valid": bool}.
type Gate struct {
	endpoint string
	client   *http.Client
}

func NewGate(endpoint string, timeout time.Duration) (*Gate, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid booking url %q", endpoint)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Gate{endpoint: endpoint, client: &http.Client{Timeout: timeout}}, nil
}

type verdict struct {
	Valid bool `json:"valid"`
}

func (g *Gate) IsBookingWindowValid(ctx context.Context, caller, receiver domain.UserID) (bool, error) {
	u, err := url.Parse(g.endpoint)
	if err != nil {
		return false, err
	}
	q := u.Query()
	q.Set("caller", string(caller))
	q.Set("receiver", string(receiver))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("booking lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("booking lookup: unexpected status %d", resp.StatusCode)
	}
	var v verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return false, fmt.Errorf("booking lookup: decode: %w", err)
	}
	return v.Valid, nil
}
