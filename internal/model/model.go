// Package model defines the shared entities of the workload: Product, Customer,
// BrowsingHistory, SalesTransaction. BrowsingHistory intentionally avoids a
// pointer back to its owning queue (which would cycle with the queue's own
// reference to the history) and instead stores a QueueID, resolved through
// the queue table internal/sim owns, an arena-plus-stable-index
// approach for breaking that cycle: metadata carried as plain fields with
// no back-pointers to its container.
package model

import (
	"strings"

	"github.com/corretto/heapothesys-go/internal/clock"
	"github.com/corretto/heapothesys-go/internal/queue"
)

// ProductID is a monotonic, globally unique product identifier.
type ProductID uint64

// NoProduct is the slot sentinel meaning "no product present".
const NoProduct ProductID = 0

// CustomerID is a monotonic, globally unique customer identifier.
type CustomerID uint64

// Product is a catalogue entry. Available latches false permanently once
// retired; it may still be referenced by in-flight transactions or browsing
// history after retirement.
type Product struct {
	ID          ProductID
	Name        string
	Description string
	available   bool
}

// NewProduct constructs a Product, available by default.
func NewProduct(id ProductID, name, description string) *Product {
	return &Product{ID: id, Name: name, Description: description, available: true}
}

// Available reports whether the product is still live.
func (p *Product) Available() bool { return p.available }

// Retire marks the product permanently unavailable. Idempotent.
func (p *Product) Retire() { p.available = false }

// Words splits a whitespace-separated field into its constituent words,
// used to build/query the name and description inverted indexes.
func Words(field string) []string {
	return strings.Fields(field)
}

// Customer is a registry entry with a save-for-later set of browsing
// history. The set is keyed by a locally unique history sequence number
// (not a queue position, which moves), so entries can be added/removed in
// O(1) without iterating the whole set on every mutation.
type Customer struct {
	ID   CustomerID
	Name string

	nextHistorySeq uint64
	saveForLater   map[uint64]*BrowsingHistory
}

// NewCustomer constructs a Customer with an empty save-for-later set.
func NewCustomer(id CustomerID, name string) *Customer {
	return &Customer{ID: id, Name: name, saveForLater: make(map[uint64]*BrowsingHistory)}
}

// AddSaveForLater registers h on the customer's save-for-later set.
// Returns the sequence number assigned, used as the map key for
// later removal.
func (c *Customer) AddSaveForLater(h *BrowsingHistory) uint64 {
	seq := c.nextHistorySeq
	c.nextHistorySeq++
	c.saveForLater[seq] = h
	h.customerSeq = seq
	return seq
}

// RemoveSaveForLater removes the history with the given sequence number,
// if present.
func (c *Customer) RemoveSaveForLater(seq uint64) {
	delete(c.saveForLater, seq)
}

// SaveForLater returns the customer's current save-for-later histories.
// The returned slice is a snapshot copy, safe to range over while the
// caller subsequently mutates the customer.
func (c *Customer) SaveForLater() []*BrowsingHistory {
	out := make([]*BrowsingHistory, 0, len(c.saveForLater))
	for _, h := range c.saveForLater {
		out = append(out, h)
	}
	return out
}

// BrowsingHistory is a customer's save-for-later record for a product,
// with an explicit expiration instant and a back-reference to whichever
// expiration queue instance currently owns it, stored as an opaque
// QueueID rather than a pointer (see package doc).
type BrowsingHistory struct {
	Customer CustomerID
	Product  ProductID
	expires  clock.Absolute
	QueueID  int
	handle   queue.Handle

	customerSeq uint64
}

// NewBrowsingHistory constructs a BrowsingHistory for customer c browsing
// product p, expiring at the given instant, owned by the queue identified
// by queueID.
func NewBrowsingHistory(c CustomerID, p ProductID, expiresAt clock.Absolute, queueID int) *BrowsingHistory {
	return &BrowsingHistory{Customer: c, Product: p, expires: expiresAt, QueueID: queueID}
}

// ExpiresAt satisfies internal/queue.Entry.
func (h *BrowsingHistory) ExpiresAt() clock.Absolute { return h.expires }

// SetHandle records the Handle returned by the owning queue's Enqueue
// call, so a later Remove can unlink this entry in O(1).
func (h *BrowsingHistory) SetHandle(handle queue.Handle) { h.handle = handle }

// Handle returns the Handle previously recorded by SetHandle.
func (h *BrowsingHistory) Handle() queue.Handle { return h.handle }

// CustomerSeq returns the key under which this history is stored in its
// customer's save-for-later set, for removal on retirement/expiration.
func (h *BrowsingHistory) CustomerSeq() uint64 { return h.customerSeq }

// SalesTransaction is a pending purchase enqueued by a customer worker and
// drained by a server worker.
type SalesTransaction struct {
	Customer  CustomerID
	Product   ProductID
	Review    string
	EnqueuedAt clock.Absolute
}

// NewSalesTransaction constructs a SalesTransaction enqueued at now.
func NewSalesTransaction(c CustomerID, p ProductID, review string, now clock.Absolute) *SalesTransaction {
	return &SalesTransaction{Customer: c, Product: p, Review: review, EnqueuedAt: now}
}
