package fulfillment

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

// UploadState is the per-file state of an upload batch
type UploadState string

const (
	UploadPending   UploadState = "pending"
	UploadUploading UploadState = "uploading"
	UploadCompleted UploadState = "completed"
	UploadError     UploadState = "error"
)

// IsTerminal reports whether the file will not change state again
func (s UploadState) IsTerminal() bool {
	return s == UploadCompleted || s == UploadError
}

// UploadItem tracks one file of a batch
type UploadItem struct {
	ID          uuid.UUID        `json:"id"`
	FileName    string           `json:"file_name"`
	Size        int64            `json:"size"`
	Transferred int64            `json:"transferred"`
	State       UploadState      `json:"state"`
	Error       string           `json:"error,omitempty"`
	Stored      *DeliverableFile `json:"-"`
}

// Progress returns the transferred fraction in [0, 1]
func (i UploadItem) Progress() float64 {
	if i.State == UploadCompleted {
		return 1
	}
	if i.Size <= 0 {
		return 0
	}
	p := float64(i.Transferred) / float64(i.Size)
	if p > 1 {
		return 1
	}
	return p
}

// UploadBatch tracks a set of files uploaded concurrently. Items finish in
// any order; the batch is ready only when all of them are terminal. Safe for
// concurrent use.
type UploadBatch struct {
	mu      sync.Mutex
	orderID uuid.UUID
	items   []*UploadItem
	index   map[uuid.UUID]*UploadItem
	ready   chan struct{}
	once    sync.Once
}

// NewUploadBatch creates a batch with one pending item per file
func NewUploadBatch(orderID uuid.UUID, files []UploadSource) *UploadBatch {
	b := &UploadBatch{
		orderID: orderID,
		items:   make([]*UploadItem, 0, len(files)),
		index:   make(map[uuid.UUID]*UploadItem, len(files)),
		ready:   make(chan struct{}),
	}
	for _, f := range files {
		item := &UploadItem{ID: uuid.New(), FileName: f.FileName, Size: f.Size, State: UploadPending}
		b.items = append(b.items, item)
		b.index[item.ID] = item
	}
	if len(files) == 0 {
		b.once.Do(func() { close(b.ready) })
	}
	return b
}

// OrderID returns the order the batch delivers to
func (b *UploadBatch) OrderID() uuid.UUID { return b.orderID }

// ItemIDs returns the item ids in submission order
func (b *UploadBatch) ItemIDs() []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]uuid.UUID, len(b.items))
	for i, item := range b.items {
		ids[i] = item.ID
	}
	return ids
}

// Start marks an item as uploading
func (b *UploadBatch) Start(id uuid.UUID) {
	b.update(id, func(i *UploadItem) {
		if !i.State.IsTerminal() {
			i.State = UploadUploading
		}
	})
}

// Advance records transferred bytes for an item
func (b *UploadBatch) Advance(id uuid.UUID, transferred int64) {
	b.update(id, func(i *UploadItem) {
		if !i.State.IsTerminal() && transferred > i.Transferred {
			i.Transferred = transferred
		}
	})
}

// Complete marks an item as stored
func (b *UploadBatch) Complete(id uuid.UUID, stored DeliverableFile) {
	b.update(id, func(i *UploadItem) {
		if i.State.IsTerminal() {
			return
		}
		i.State = UploadCompleted
		i.Transferred = i.Size
		i.Stored = &stored
	})
}

// Fail marks an item as failed
func (b *UploadBatch) Fail(id uuid.UUID, err error) {
	b.update(id, func(i *UploadItem) {
		if i.State.IsTerminal() {
			return
		}
		i.State = UploadError
		if err != nil {
			i.Error = err.Error()
		}
	})
}

// Ready is closed once every item reached a terminal state
func (b *UploadBatch) Ready() <-chan struct{} {
	return b.ready
}

// IsReady reports whether every item is terminal
func (b *UploadBatch) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allTerminal()
}

// Items returns a snapshot of the items in submission order
func (b *UploadBatch) Items() []UploadItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]UploadItem, len(b.items))
	for i, item := range b.items {
		out[i] = *item
	}
	return out
}

// Completed returns the stored files of completed items in submission order
func (b *UploadBatch) Completed() []DeliverableFile {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []DeliverableFile
	for _, item := range b.items {
		if item.State == UploadCompleted && item.Stored != nil {
			out = append(out, *item.Stored)
		}
	}
	return out
}

// Failed returns the items that ended in error
func (b *UploadBatch) Failed() []UploadItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []UploadItem
	for _, item := range b.items {
		if item.State == UploadError {
			out = append(out, *item)
		}
	}
	return out
}

func (b *UploadBatch) update(id uuid.UUID, fn func(*UploadItem)) {
	b.mu.Lock()
	item, ok := b.index[id]
	if ok {
		fn(item)
	}
	done := b.allTerminal()
	b.mu.Unlock()
	if done {
		b.once.Do(func() { close(b.ready) })
	}
}

func (b *UploadBatch) allTerminal() bool {
	for _, item := range b.items {
		if !item.State.IsTerminal() {
			return false
		}
	}
	return true
}

// UploadSource is one file handed to the upload pipeline
type UploadSource struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProgressFunc receives the number of bytes transferred so far
type ProgressFunc func(transferred int64)

// StoredObject is where the blob store put a file
type StoredObject struct {
	URL  string
	Path string
}

// DeliverablePrefix is the blob key prefix of an order's files
func DeliverablePrefix(orderID uuid.UUID) string {
	return "orders/" + orderID.String() + "/"
}

// DeliverableKey is the blob key of one uploaded file. The item id keeps
// re-uploads of the same file name apart.
func DeliverableKey(orderID, itemID uuid.UUID, fileName string) string {
	return DeliverablePrefix(orderID) + itemID.String() + "/" + fileName
}

// BlobStore is the external file storage for deliverables
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress ProgressFunc) (StoredObject, error)
	// Download streams the deliverables of the order as a zip archive. A
	// non-nil include limits the archive to the paths it accepts.
	Download(ctx context.Context, orderID uuid.UUID, w io.Writer, include func(path string) bool) error
}
