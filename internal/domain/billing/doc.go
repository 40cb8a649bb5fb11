// Package billing owns the per-order Billing Ledger.
//
// A Ledger holds the line items billed for one order, computes subtotal, tax
// and total from them on every read, and tracks the projection of the invoice
// raised in the partner's external accounting system.
//
// Line item names and prices are frozen when the item is added; later catalog
// edits never change an existing ledger. Once an invoice has been raised the
// ledger is read-only.
//
// The billing domain integrates with:
//   - Accounting domain: to resolve contact, account and tax codes
//   - Fulfillment domain: one ledger per order, created with the order
package billing
