// Package taxid is a typed Basic-authenticated client for the external
// tax-ID resolver used by tier 3 of the enrichment pipeline.
package taxid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MbInteligen/mbras-c2s-enrichment/providers"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// Client wraps the tax-ID resolver's two lookup endpoints.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

// New constructs a tax-ID resolver client bound to baseURL with Basic
// auth.
func New(baseURL, user, password string) *Client {
	return &Client{baseURL: baseURL, user: user, password: password, http: &http.Client{Timeout: providers.Timeout}}
}

type lookupResponse struct {
	TaxID string `json:"tax_id"`
}

// ByPhone resolves a tax_id from a phone number's digits. Returns ("",
// nil) when the resolver has no match, distinguishing "no match" from
// an error.
func (c *Client) ByPhone(ctx context.Context, digits string) (string, error) {
	return c.lookup(ctx, "/phone/"+digits)
}

// ByEmail resolves a tax_id from a normalized email address.
func (c *Client) ByEmail(ctx context.Context, email string) (string, error) {
	return c.lookup(ctx, "/email/"+email)
}

func (c *Client) lookup(ctx context.Context, path string) (string, error) {
	var taxID string
	err := providers.WithRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return types.New(types.KindInternal, "build tax-id lookup request").WithCause(err)
		}
		req.SetBasicAuth(c.user, c.password)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return types.New(types.KindUpstreamFailure, "call tax-id resolver").WithCause(err).WithProvider("taxid").WithRetryable(true)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			taxID = ""
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return types.New(types.KindUpstreamFailure, fmt.Sprintf("tax-id resolver returned %d", resp.StatusCode)).
				WithProvider("taxid").WithRetryable(resp.StatusCode >= 500)
		}

		var r lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return types.New(types.KindUpstreamFailure, "decode tax-id resolver response").WithCause(err).WithProvider("taxid")
		}
		taxID = r.TaxID
		return nil
	})
	if err != nil {
		return "", err
	}
	return taxID, nil
}
