// Package rugcheck is a thin client for the rugcheck.xyz token risk
// report API, used to populate the policy engine's rugcheck gate.
package rugcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const baseURL = "https://api.rugcheck.xyz/v1"

// Client fetches rugcheck report summaries.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a rugcheck client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// SetBaseURL overrides the target host, used by tests to point the
// client at an httptest server.
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

// Risk is one entry in a Summary's risk list.
type Risk struct {
	Name        string `json:"name"`
	Level       string `json:"level"`
	Description string `json:"description"`
}

// Summary is the rugcheck report summary for a mint.
type Summary struct {
	Score           int      `json:"score"`
	MintAuthority   *string  `json:"mintAuthority"`
	FreezeAuthority *string  `json:"freezeAuthority"`
	Risks           []Risk   `json:"risks"`
}

// CriticalRisks returns the risks flagged "danger" or "critical".
func (s Summary) CriticalRisks() []Risk {
	var out []Risk
	for _, r := range s.Risks {
		if r.Level == "danger" || r.Level == "critical" {
			out = append(out, r)
		}
	}
	return out
}

// GetReportSummary fetches the report summary for a mint.
func (c *Client) GetReportSummary(ctx context.Context, mint string) (*Summary, error) {
	url := fmt.Sprintf("%s/tokens/%s/report/summary", c.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rugcheck: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rugcheck: status %d", resp.StatusCode)
	}

	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("rugcheck: decode: %w", err)
	}
	return &summary, nil
}
