package testutil

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/editdesk/backend/internal/domain/accounting"
	"github.com/editdesk/backend/internal/domain/activity"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
)

// StubLedgerAPI is an accounting.LedgerAPI that numbers invoices INV-0001,
// INV-0002 and so on
type StubLedgerAPI struct {
	mu       sync.Mutex
	Requests []accounting.InvoiceRequest
	Contacts []accounting.Contact
	Accounts []accounting.Account
	Rates    []accounting.TaxRate
	err      error
	byRef    map[string]accounting.CreatedInvoice
}

// NewStubLedgerAPI creates a ledger stub with empty reference lists
func NewStubLedgerAPI() *StubLedgerAPI {
	return &StubLedgerAPI{byRef: make(map[string]accounting.CreatedInvoice)}
}

// FailWith makes every invoice call return err until cleared with nil
func (s *StubLedgerAPI) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// CreateInvoice implements accounting.LedgerAPI
func (s *StubLedgerAPI) CreateInvoice(_ context.Context, req accounting.InvoiceRequest) (*accounting.CreatedInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.Requests = append(s.Requests, req)
	n := len(s.Requests)
	created := accounting.CreatedInvoice{
		InvoiceID:     fmt.Sprintf("ext-%04d", n),
		InvoiceNumber: fmt.Sprintf("INV-%04d", n),
	}
	if req.Reference != "" {
		s.byRef[req.Reference] = created
	}
	return &created, nil
}

// FindInvoiceByReference implements accounting.LedgerAPI
func (s *StubLedgerAPI) FindInvoiceByReference(_ context.Context, reference string) (*accounting.CreatedInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	inv, ok := s.byRef[reference]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

// InvoiceCount returns how many invoices were created
func (s *StubLedgerAPI) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

func (s *StubLedgerAPI) ListContacts(context.Context) ([]accounting.Contact, error) {
	return s.Contacts, nil
}

func (s *StubLedgerAPI) ListAccounts(context.Context) ([]accounting.Account, error) {
	return s.Accounts, nil
}

func (s *StubLedgerAPI) ListTaxRates(context.Context) ([]accounting.TaxRate, error) {
	return s.Rates, nil
}

// MemoryBlobStore keeps uploaded files in memory
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FailNames lists file keys whose upload fails
	FailNames map[string]bool
}

// NewMemoryBlobStore creates an empty blob store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		objects:   make(map[string][]byte),
		FailNames: make(map[string]bool),
	}
}

// Upload implements fulfillment.BlobStore. Progress is reported in two steps.
func (s *MemoryBlobStore) Upload(_ context.Context, key string, body io.Reader, size int64, _ string, progress fulfillment.ProgressFunc) (fulfillment.StoredObject, error) {
	for name := range s.FailNames {
		if strings.HasSuffix(key, "/"+name) {
			return fulfillment.StoredObject{}, fmt.Errorf("upload %s: connection reset", name)
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fulfillment.StoredObject{}, err
	}
	if progress != nil {
		progress(size / 2)
		progress(int64(len(data)))
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return fulfillment.StoredObject{URL: "mem://" + key, Path: key}, nil
}

// Download implements fulfillment.BlobStore
func (s *MemoryBlobStore) Download(_ context.Context, orderID uuid.UUID, w io.Writer, include func(path string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := fulfillment.DeliverablePrefix(orderID)
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && (include == nil || include(k)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	zw := zip.NewWriter(w)
	for _, k := range keys {
		f, err := zw.Create(strings.TrimPrefix(k, prefix))
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, bytes.NewReader(s.objects[k])); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Keys returns the stored object keys
func (s *MemoryBlobStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PublishedMessage is one message seen by RecordingPublisher
type PublishedMessage struct {
	Topic   string
	Payload []byte
}

// RecordingPublisher is an activity.Publisher that keeps every message
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
}

// NewRecordingPublisher creates an empty publisher
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// FailWith makes Publish return err
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *RecordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Messages returns the published messages in order
func (p *RecordingPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.messages...)
}

var (
	_ accounting.LedgerAPI  = (*StubLedgerAPI)(nil)
	_ fulfillment.BlobStore = (*MemoryBlobStore)(nil)
	_ activity.Publisher    = (*RecordingPublisher)(nil)
)
