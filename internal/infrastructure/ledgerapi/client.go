// Package ledgerapi is the HTTP client of the partner's external accounting
// ledger.
package ledgerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TenantHeader selects the ledger organisation a request acts on
const TenantHeader = "X-Tenant-Id"

// APIError is a non-2xx answer from the ledger
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"Type"`
	Message    string `json:"Message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledger api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ledger api returned status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the call later may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type contactRef struct {
	ContactID string `json:"ContactID"`
}

type lineItemPayload struct {
	Description string          `json:"Description"`
	Quantity    int             `json:"Quantity"`
	UnitAmount  decimal.Decimal `json:"UnitAmount"`
	AccountCode string          `json:"AccountCode"`
	TaxType     string          `json:"TaxType"`
}

type invoicePayload struct {
	Type            string            `json:"Type"`
	Contact         contactRef        `json:"Contact"`
	Reference       string            `json:"Reference"`
	CurrencyCode    string            `json:"CurrencyCode,omitempty"`
	Status          string            `json:"Status"`
	LineAmountTypes string            `json:"LineAmountTypes"`
	LineItems       []lineItemPayload `json:"LineItems"`
}

type invoiceEnvelope struct {
	Invoices []invoicePayload `json:"Invoices"`
}

type invoiceSummary struct {
	InvoiceID     string `json:"InvoiceID"`
	InvoiceNumber string `json:"InvoiceNumber"`
	Reference     string `json:"Reference"`
	Status        string `json:"Status"`
}

type summaryEnvelope struct {
	Invoices []invoiceSummary `json:"Invoices"`
}

type contactsEnvelope struct {
	Contacts []struct {
		ContactID string `json:"ContactID"`
		Name      string `json:"Name"`
	} `json:"Contacts"`
}

type accountsEnvelope struct {
	Accounts []struct {
		Code string `json:"Code"`
		Name string `json:"Name"`
	} `json:"Accounts"`
}

type taxRatesEnvelope struct {
	TaxRates []struct {
		TaxType       string          `json:"TaxType"`
		Name          string          `json:"Name"`
		EffectiveRate decimal.Decimal `json:"EffectiveRate"`
	} `json:"TaxRates"`
}

// Client implements accounting.LedgerAPI over the ledger's REST API
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

var _ accounting.LedgerAPI = (*Client)(nil)

// NewClient creates a Client. Reads are retried on 429 and 5xx; invoice
// creation is only retried on transport errors.
func NewClient(cfg config.LedgerConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ledger base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4*cfg.RetryWait).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil || resp == nil {
				return false
			}
			if resp.Request.Method != http.MethodGet {
				return false
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}
	if cfg.TenantID != "" {
		httpClient.SetHeader(TenantHeader, cfg.TenantID)
	}

	return &Client{http: httpClient, logger: logger}, nil
}

// CreateInvoice creates a sales invoice with tax-exclusive line amounts
func (c *Client) CreateInvoice(ctx context.Context, req accounting.InvoiceRequest) (*accounting.CreatedInvoice, error) {
	payload := invoicePayload{
		Type:            "ACCREC",
		Contact:         contactRef{ContactID: req.ContactID},
		Reference:       req.Reference,
		CurrencyCode:    req.Currency,
		Status:          strings.ToUpper(req.Status),
		LineAmountTypes: "Exclusive",
		LineItems:       make([]lineItemPayload, len(req.Lines)),
	}
	for i, l := range req.Lines {
		payload.LineItems[i] = lineItemPayload{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitAmount:  l.UnitAmount,
			AccountCode: l.AccountCode,
			TaxType:     l.TaxType,
		}
	}

	var out summaryEnvelope
	if err := c.do(ctx, http.MethodPost, "/Invoices", invoiceEnvelope{Invoices: []invoicePayload{payload}}, &out); err != nil {
		return nil, err
	}
	if len(out.Invoices) == 0 || out.Invoices[0].InvoiceID == "" {
		return nil, errors.New("ledger api returned no invoice")
	}
	c.logger.Info("Ledger invoice created",
		zap.String("reference", req.Reference),
		zap.String("invoice_id", out.Invoices[0].InvoiceID),
		zap.String("invoice_number", out.Invoices[0].InvoiceNumber),
	)
	return &accounting.CreatedInvoice{
		InvoiceID:     out.Invoices[0].InvoiceID,
		InvoiceNumber: out.Invoices[0].InvoiceNumber,
	}, nil
}

// FindInvoiceByReference looks up a sales invoice by its reference
func (c *Client) FindInvoiceByReference(ctx context.Context, reference string) (*accounting.CreatedInvoice, error) {
	var out summaryEnvelope
	where := fmt.Sprintf(`Type=="ACCREC" AND Reference==%q`, reference)
	if err := c.do(ctx, http.MethodGet, "/Invoices", nil, &out, withQuery("where", where)); err != nil {
		return nil, err
	}
	for _, inv := range out.Invoices {
		if inv.Reference != reference {
			continue
		}
		switch strings.ToUpper(inv.Status) {
		case "VOIDED", "DELETED":
			continue
		}
		return &accounting.CreatedInvoice{InvoiceID: inv.InvoiceID, InvoiceNumber: inv.InvoiceNumber}, nil
	}
	return nil, nil
}

// ListContacts returns the ledger's contacts
func (c *Client) ListContacts(ctx context.Context) ([]accounting.Contact, error) {
	var out contactsEnvelope
	if err := c.do(ctx, http.MethodGet, "/Contacts", nil, &out); err != nil {
		return nil, err
	}
	contacts := make([]accounting.Contact, len(out.Contacts))
	for i, ct := range out.Contacts {
		contacts[i] = accounting.Contact{ID: ct.ContactID, Name: ct.Name}
	}
	return contacts, nil
}

// ListAccounts returns the ledger's chart of accounts
func (c *Client) ListAccounts(ctx context.Context) ([]accounting.Account, error) {
	var out accountsEnvelope
	if err := c.do(ctx, http.MethodGet, "/Accounts", nil, &out); err != nil {
		return nil, err
	}
	accounts := make([]accounting.Account, len(out.Accounts))
	for i, a := range out.Accounts {
		accounts[i] = accounting.Account{Code: a.Code, Name: a.Name}
	}
	return accounts, nil
}

// ListTaxRates returns the ledger's tax rates
func (c *Client) ListTaxRates(ctx context.Context) ([]accounting.TaxRate, error) {
	var out taxRatesEnvelope
	if err := c.do(ctx, http.MethodGet, "/TaxRates", nil, &out); err != nil {
		return nil, err
	}
	rates := make([]accounting.TaxRate, len(out.TaxRates))
	for i, r := range out.TaxRates {
		rates[i] = accounting.TaxRate{TaxType: r.TaxType, Name: r.Name, Rate: r.EffectiveRate}
	}
	return rates, nil
}

type requestOption func(*resty.Request)

func withQuery(key, value string) requestOption {
	return func(r *resty.Request) { r.SetQueryParam(key, value) }
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, opts ...requestOption) error {
	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("Ledger API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("ledger api %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		c.logger.Warn("Ledger API returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", apiErr.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}
	return nil
}
