// Package deepenrich is a typed, API-key-authenticated client for the
// deep-enrichment provider. The response is a large structured JSON
// carrying basic, economic, contact, address, and company sub-sections.
package deepenrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/MbInteligen/mbras-c2s-enrichment/providers"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// Client wraps the deep-enrichment provider's single lookup endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New constructs a deep-enrichment client bound to baseURL, authenticated
// via an API-key query parameter.
func New(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: providers.Timeout}}
}

// Basic holds the subset of the basic sub-section the pipeline
// transforms: name, birth date, sex.
type Basic struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
	Sex       string `json:"sex"`
}

// Economic holds the subset of the economic sub-section the pipeline
// transforms: reported income and risk label.
type Economic struct {
	ReportedIncome string `json:"reported_income"`
	RiskLabel      string `json:"risk_label"`
}

// AddressRecord is one entry of the address sub-section, in source
// order (position 0 is the primary candidate).
type AddressRecord struct {
	Street               string `json:"street"`
	Number               string `json:"number"`
	District             string `json:"district"`
	City                 string `json:"city"`
	State                string `json:"state"`
	PostalCode           string `json:"postal_code"`
	OwnerName            string `json:"owner_name"`
	DeclaredRelationship string `json:"declared_relationship"`
}

// ContactRecord is one entry of the contact sub-section.
type ContactRecord struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CompanyAssociation is one entry of the company sub-section.
type CompanyAssociation struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Payload is the deep-enrichment provider's full response shape.
type Payload struct {
	Basic     Basic                `json:"basic"`
	Economic  Economic             `json:"economic"`
	Contacts  []ContactRecord      `json:"contacts"`
	Addresses []AddressRecord      `json:"addresses"`
	Companies []CompanyAssociation `json:"companies"`

	// Raw carries the exact bytes returned, for checksum-validated
	// caching and for storing the unmodified raw_payload.
	Raw json.RawMessage `json:"-"`
}

// Lookup queries the provider for taxID's enrichment payload.
func (c *Client) Lookup(ctx context.Context, taxID string) (*Payload, error) {
	var payload Payload
	err := providers.WithRetry(ctx, func(ctx context.Context) error {
		q := url.Values{"api_key": []string{c.apiKey}, "tax_id": []string{taxID}}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lookup?"+q.Encode(), nil)
		if err != nil {
			return types.New(types.KindInternal, "build deep-enrichment request").WithCause(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return types.New(types.KindUpstreamFailure, "call deep-enrichment provider").WithCause(err).WithProvider("deepenrich").WithRetryable(true)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return types.New(types.KindUpstreamFailure, fmt.Sprintf("deep-enrichment provider returned %d", resp.StatusCode)).
				WithProvider("deepenrich").WithRetryable(resp.StatusCode >= 500)
		}

		raw, err := decodeRaw(resp)
		if err != nil {
			return types.New(types.KindUpstreamFailure, "read deep-enrichment response").WithCause(err).WithProvider("deepenrich")
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return types.New(types.KindUpstreamFailure, "decode deep-enrichment response").WithCause(err).WithProvider("deepenrich")
		}
		payload.Raw = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

func decodeRaw(resp *http.Response) (json.RawMessage, error) {
	buf, err := io.ReadAll(resp.Body)
	return buf, err
}
