package transfer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the full payload of an entity captured at enqueue time.
// The set of implementations is closed: ContactSnapshot, CompanySnapshot,
// InvoiceSnapshot and LineItemSnapshot.
type Snapshot interface {
	EntityType() EntityType
	sealed()
}

// ContactSnapshot is a person record from the CRM
type ContactSnapshot struct {
	ID          string            `json:"id"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	JobTitle    string            `json:"job_title,omitempty"`
	CompanyID   string            `json:"company_id,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CompanySnapshot is an organisation record with its associated contacts
type CompanySnapshot struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Domain      string            `json:"domain,omitempty"`
	Industry    string            `json:"industry,omitempty"`
	TaxNumber   string            `json:"tax_number,omitempty"`
	Address     string            `json:"address,omitempty"`
	ContactIDs  []string          `json:"contact_ids,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// InvoiceSnapshot is an invoice with its line items and billed company
type InvoiceSnapshot struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	Status      string             `json:"status"`
	Currency    string             `json:"currency"`
	CompanyID   string             `json:"company_id,omitempty"`
	Company     *CompanySnapshot   `json:"company,omitempty"`
	ContactID   string             `json:"contact_id,omitempty"`
	IssueDate   time.Time          `json:"issue_date"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	TaxTotal    decimal.Decimal    `json:"tax_total"`
	Total       decimal.Decimal    `json:"total"`
	LineItems   []LineItemSnapshot `json:"line_items"`
	ExternalIDs map[string]string  `json:"external_ids,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// LineItemSnapshot is a single invoice line
type LineItemSnapshot struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Description string          `json:"description"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Amount      decimal.Decimal `json:"amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (ContactSnapshot) EntityType() EntityType  { return EntityTypeContact }
func (CompanySnapshot) EntityType() EntityType  { return EntityTypeCompany }
func (InvoiceSnapshot) EntityType() EntityType  { return EntityTypeInvoice }
func (LineItemSnapshot) EntityType() EntityType { return EntityTypeLineItem }

func (ContactSnapshot) sealed()  {}
func (CompanySnapshot) sealed()  {}
func (InvoiceSnapshot) sealed()  {}
func (LineItemSnapshot) sealed() {}

// RecalculateTotals recomputes line amounts and invoice totals from
// quantities, unit prices and tax rates
func (s *InvoiceSnapshot) RecalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range s.LineItems {
		li := &s.LineItems[i]
		li.Amount = li.Quantity.Mul(li.UnitPrice)
		subtotal = subtotal.Add(li.Amount)
		tax = tax.Add(li.Amount.Mul(li.TaxRate))
	}
	s.Subtotal = subtotal
	s.TaxTotal = tax.Round(2)
	s.Total = s.Subtotal.Add(s.TaxTotal)
}

// EncodeSnapshot serializes a snapshot to JSON
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// DecodeSnapshot deserializes a snapshot of the given entity type
func DecodeSnapshot(t EntityType, data []byte) (Snapshot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	switch t {
	case EntityTypeContact:
		var s ContactSnapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode contact snapshot: %w", err)
		}
		return s, nil
	case EntityTypeCompany:
		var s CompanySnapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode company snapshot: %w", err)
		}
		return s, nil
	case EntityTypeInvoice:
		var s InvoiceSnapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode invoice snapshot: %w", err)
		}
		return s, nil
	case EntityTypeLineItem:
		var s LineItemSnapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode line item snapshot: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("decode snapshot: unsupported entity type %q", t)
	}
}
