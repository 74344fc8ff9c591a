// Package crm is a typed Bearer-authenticated client for the direct CRM
// integration used by the pipeline: fetch-lead, create-message, and
// create-lead. The gateway-variant CRM path is not implemented (see the
// Open Question decision in DESIGN.md).
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MbInteligen/mbras-c2s-enrichment/providers"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"

	"go.uber.org/zap"
)

// Client wraps the direct CRM integration endpoints.
type Client struct {
	baseURL       string
	token         string
	defaultSeller string
	http          *http.Client
	logger        *zap.Logger
}

// New constructs a CRM client bound to baseURL with Bearer token auth.
func New(baseURL, token, defaultSeller string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       baseURL,
		token:         token,
		defaultSeller: defaultSeller,
		http:          &http.Client{Timeout: providers.Timeout},
		logger:        logger,
	}
}

// Lead is the canonical shape of a fetched lead's customer attributes.
type Lead struct {
	ID         string
	Name       string
	Phone      string
	Email      string
	HookAction string
}

type leadEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			HookAction string `json:"hook_action"`
			Customer   struct {
				Name  string `json:"name"`
				Phone string `json:"phone"`
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchLead retrieves a lead's customer attributes by id.
func (c *Client) FetchLead(ctx context.Context, leadID string) (*Lead, error) {
	var lead Lead
	err := providers.WithRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/integration/lead/"+leadID, nil)
		if err != nil {
			return types.New(types.KindInternal, "build fetch-lead request").WithCause(err)
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return types.New(types.KindUpstreamFailure, "call CRM fetch-lead").WithCause(err).WithProvider("crm").WithRetryable(true)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return types.New(types.KindNotFound, "lead not found").WithProvider("crm")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return types.New(types.KindUpstreamFailure, fmt.Sprintf("CRM fetch-lead returned %d", resp.StatusCode)).
				WithProvider("crm").WithRetryable(resp.StatusCode >= 500)
		}

		var env leadEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return types.New(types.KindUpstreamFailure, "decode CRM fetch-lead response").WithCause(err).WithProvider("crm")
		}
		lead = Lead{
			ID:         env.Data.ID,
			Name:       env.Data.Attributes.Customer.Name,
			Phone:      env.Data.Attributes.Customer.Phone,
			Email:      env.Data.Attributes.Customer.Email,
			HookAction: env.Data.Attributes.HookAction,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// CreateMessage posts the composed enrichment message onto a lead's
// timeline. It is a first-class pipeline step: the caller's job only
// transitions to completed on a 2xx response here.
func (c *Client) CreateMessage(ctx context.Context, leadID, body string) error {
	payload, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"type": "lead-message",
			"attributes": map[string]any{
				"text": body,
			},
		},
	})

	return providers.WithRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/integration/leads/"+leadID+"/create_message", bytes.NewReader(payload))
		if err != nil {
			return types.New(types.KindInternal, "build create-message request").WithCause(err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return types.New(types.KindUpstreamFailure, "call CRM create-message").WithCause(err).WithProvider("crm").WithRetryable(true)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return types.New(types.KindUpstreamFailure, fmt.Sprintf("CRM create-message returned %d", resp.StatusCode)).
				WithProvider("crm").WithRetryable(resp.StatusCode >= 500)
		}
		return nil
	})
}

// CreateLeadAttributes is the opaque passthrough attribute set for a new
// lead sourced from the advertising-platform webhook.
type CreateLeadAttributes struct {
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	SellerID string `json:"seller_id,omitempty"`
}

// CreateLead creates a new CRM lead, injecting DefaultSeller when the
// caller didn't supply one.
func (c *Client) CreateLead(ctx context.Context, attrs CreateLeadAttributes) (leadID string, err error) {
	if attrs.SellerID == "" {
		attrs.SellerID = c.defaultSeller
	}
	payload, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"type":       "lead",
			"attributes": attrs,
		},
	})

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	retryErr := providers.WithRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/integration/leads", bytes.NewReader(payload))
		if err != nil {
			return types.New(types.KindInternal, "build create-lead request").WithCause(err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return types.New(types.KindUpstreamFailure, "call CRM create-lead").WithCause(err).WithProvider("crm").WithRetryable(true)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return types.New(types.KindUpstreamFailure, fmt.Sprintf("CRM create-lead returned %d", resp.StatusCode)).
				WithProvider("crm").WithRetryable(resp.StatusCode >= 500)
		}
		return json.NewDecoder(resp.Body).Decode(&created)
	})
	if retryErr != nil {
		return "", retryErr
	}
	return created.Data.ID, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}

// HealthCheck performs a cheap reachability probe for the /ready route.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/integration/lead/__health__", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
