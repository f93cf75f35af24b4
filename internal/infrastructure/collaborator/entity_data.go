package collaborator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
)

// HTTPEntityDataProvider reads full entity records from the entity-data
// service. It implements transfer.EntityDataProvider.
type HTTPEntityDataProvider struct {
	c *client
}

// NewHTTPEntityDataProvider creates a provider rooted at baseURL
func NewHTTPEntityDataProvider(baseURL string, timeout time.Duration, opts ...Option) *HTTPEntityDataProvider {
	c := newClient(baseURL, timeout, opts...)
	c.logger = c.logger.Named("entity_data")
	return &HTTPEntityDataProvider{c: c}
}

func resourcePath(tenantID uuid.UUID, collection, id string) string {
	return fmt.Sprintf("/v1/tenants/%s/%s/%s", tenantID, collection, url.PathEscape(id))
}

// get decodes the record into out and reports whether it exists
func get[T any](ctx context.Context, c *client, tenantID uuid.UUID, collection, id string) (*T, error) {
	var out T
	found, err := c.do(ctx, http.MethodGet, resourcePath(tenantID, collection, id), nil, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", collection, id, err)
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

// GetContact returns nil, nil when the contact does not exist
func (p *HTTPEntityDataProvider) GetContact(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.ContactSnapshot, error) {
	return get[transfer.ContactSnapshot](ctx, p.c, tenantID, "contacts", id)
}

// GetCompany returns nil, nil when the company does not exist
func (p *HTTPEntityDataProvider) GetCompany(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.CompanySnapshot, error) {
	return get[transfer.CompanySnapshot](ctx, p.c, tenantID, "companies", id)
}

// GetInvoice returns the invoice with its line items. Totals omitted by the
// service are computed from the lines.
func (p *HTTPEntityDataProvider) GetInvoice(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.InvoiceSnapshot, error) {
	inv, err := get[transfer.InvoiceSnapshot](ctx, p.c, tenantID, "invoices", id)
	if err != nil || inv == nil {
		return inv, err
	}
	if inv.Total.IsZero() && len(inv.LineItems) > 0 {
		inv.RecalculateTotals()
	}
	return inv, nil
}

// GetLineItem returns nil, nil when the line item does not exist
func (p *HTTPEntityDataProvider) GetLineItem(ctx context.Context, tenantID uuid.UUID, id string) (*transfer.LineItemSnapshot, error) {
	return get[transfer.LineItemSnapshot](ctx, p.c, tenantID, "line-items", id)
}
