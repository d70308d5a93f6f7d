// Package crudclient talks to the remote applicant record store over HTTP.
package crudclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dvloznov/statement-kfi/internal/domain"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/metrics"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

// Route templates, also used as metric labels.
const (
	routeApplicants   = "/applicants/"
	routeApplicant    = "/applicants/{id}"
	routeTransactions = "/applicants/{id}/transactions/bulk/"
	routeIndicators   = "/applicants/{id}/kfis/"
)

// Client is the HTTP implementation of pipeline.ApplicantStore. Requests are
// never retried.
type Client struct {
	httpClient *resty.Client
	metrics    *metrics.Metrics
}

// New creates a client for the store at baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{httpClient: httpClient, metrics: m}
}

type createApplicantRequest struct {
	Name string `json:"name"`
}

// CreateApplicant implements pipeline.ApplicantStore.
func (c *Client) CreateApplicant(ctx context.Context, name string) (string, error) {
	var out domain.Applicant
	resp, err := c.do(ctx, http.MethodPost, routeApplicants, routeApplicants, func(r *resty.Request) *resty.Request {
		return r.SetBody(createApplicantRequest{Name: name}).SetResult(&out)
	})
	if err != nil {
		return "", fmt.Errorf("CreateApplicant: %w", err)
	}
	if err := expectStatus(resp, http.StatusCreated); err != nil {
		return "", fmt.Errorf("CreateApplicant: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("CreateApplicant: response has no id")
	}
	return out.ID, nil
}

// GetApplicant implements pipeline.ApplicantStore.
func (c *Client) GetApplicant(ctx context.Context, id string) (*domain.Applicant, error) {
	var out domain.Applicant
	resp, err := c.do(ctx, http.MethodGet, routeApplicant, applicantPath(id), func(r *resty.Request) *resty.Request {
		return r.SetResult(&out)
	})
	if err != nil {
		return nil, fmt.Errorf("GetApplicant: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("GetApplicant: %s: %w", id, domain.ErrApplicantNotFound)
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("GetApplicant: %w", err)
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// UpdateApplicant implements pipeline.ApplicantStore.
func (c *Client) UpdateApplicant(ctx context.Context, id string, applicant *domain.Applicant) error {
	resp, err := c.do(ctx, http.MethodPut, routeApplicant, applicantPath(id), func(r *resty.Request) *resty.Request {
		return r.SetBody(applicant)
	})
	if err != nil {
		return fmt.Errorf("UpdateApplicant: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("UpdateApplicant: %s: %w", id, domain.ErrApplicantNotFound)
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return fmt.Errorf("UpdateApplicant: %w", err)
	}
	return nil
}

// CreateTransactions implements pipeline.ApplicantStore.
func (c *Client) CreateTransactions(ctx context.Context, applicantID string, txs []domain.Transaction) error {
	resp, err := c.do(ctx, http.MethodPost, routeTransactions, applicantPath(applicantID)+"/transactions/bulk/", func(r *resty.Request) *resty.Request {
		return r.SetBody(txs)
	})
	if err != nil {
		return fmt.Errorf("CreateTransactions: %w", err)
	}
	if err := expectStatus(resp, http.StatusCreated); err != nil {
		return fmt.Errorf("CreateTransactions: %w", err)
	}
	return nil
}

// CreateIndicators implements pipeline.ApplicantStore.
func (c *Client) CreateIndicators(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error {
	resp, err := c.do(ctx, http.MethodPost, routeIndicators, applicantPath(applicantID)+"/kfis/", func(r *resty.Request) *resty.Request {
		return r.SetBody(kfi)
	})
	if err != nil {
		return fmt.Errorf("CreateIndicators: %w", err)
	}
	if err := expectStatus(resp, http.StatusCreated); err != nil {
		return fmt.Errorf("CreateIndicators: %w", err)
	}
	return nil
}

// do sends one request, logging and timing it under the route template.
func (c *Client) do(ctx context.Context, method, route, path string, reqFunc func(*resty.Request) *resty.Request) (*resty.Response, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	req := c.httpClient.R().SetContext(ctx)
	if reqFunc != nil {
		req = reqFunc(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Record store request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.metrics.ObserveStoreRequest(method, route, resp.StatusCode(), time.Since(start))
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("Record store request")
	return resp, nil
}

func expectStatus(resp *resty.Response, want int) error {
	if resp.StatusCode() == want {
		return nil
	}
	body := resp.String()
	if len(body) > 500 {
		body = body[:500]
	}
	return fmt.Errorf("unexpected status %d (want %d): %s", resp.StatusCode(), want, body)
}

func applicantPath(id string) string {
	return "/applicants/" + url.PathEscape(id)
}

// Ensure Client implements pipeline.ApplicantStore.
var _ pipeline.ApplicantStore = (*Client)(nil)
