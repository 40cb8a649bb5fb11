package models

import (
	"time"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
)

// OrderModel is the persistence model of an order
type OrderModel struct {
	PartnerAggregateModel
	JobID         uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex"`
	Title         string             `gorm:"type:varchar(200);not null"`
	CustomerID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	EditorID      *uuid.UUID         `gorm:"type:uuid;index"`
	Status        fulfillment.Status `gorm:"type:varchar(20);not null;index"`
	RevisionCount int                `gorm:"not null;default:0"`
	DueDate       *time.Time
	DeclineReason *string `gorm:"type:text"`
	RevisionNotes *string `gorm:"type:text"`
	AcceptedAt    *time.Time
	SubmittedAt   *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	Deliverables  []DeliverableModel `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model to a domain Order
func (m *OrderModel) ToDomain() *fulfillment.Order {
	o := &fulfillment.Order{
		JobID:         m.JobID,
		Title:         m.Title,
		CustomerID:    m.CustomerID,
		EditorID:      m.EditorID,
		Status:        m.Status,
		RevisionCount: m.RevisionCount,
		DueDate:       m.DueDate,
		DeclineReason: m.DeclineReason,
		RevisionNotes: m.RevisionNotes,
		AcceptedAt:    m.AcceptedAt,
		SubmittedAt:   m.SubmittedAt,
		CompletedAt:   m.CompletedAt,
		CancelledAt:   m.CancelledAt,
		Deliverables:  make([]fulfillment.Deliverable, len(m.Deliverables)),
	}
	m.PopulatePartnerAggregateRoot(&o.PartnerAggregateRoot)
	for i := range m.Deliverables {
		o.Deliverables[i] = m.Deliverables[i].ToDomain()
	}
	return o
}

// FromDomain populates the model from a domain Order
func (m *OrderModel) FromDomain(o *fulfillment.Order) {
	m.FromDomainPartnerAggregateRoot(o.PartnerAggregateRoot)
	m.JobID = o.JobID
	m.Title = o.Title
	m.CustomerID = o.CustomerID
	m.EditorID = o.EditorID
	m.Status = o.Status
	m.RevisionCount = o.RevisionCount
	m.DueDate = o.DueDate
	m.DeclineReason = o.DeclineReason
	m.RevisionNotes = o.RevisionNotes
	m.AcceptedAt = o.AcceptedAt
	m.SubmittedAt = o.SubmittedAt
	m.CompletedAt = o.CompletedAt
	m.CancelledAt = o.CancelledAt
	m.Deliverables = make([]DeliverableModel, len(o.Deliverables))
	for i := range o.Deliverables {
		m.Deliverables[i].FromDomain(&o.Deliverables[i])
	}
}

// OrderModelFromDomain creates a model from a domain Order
func OrderModelFromDomain(o *fulfillment.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// DeliverableModel is a file delivered against an order
type DeliverableModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName    string    `gorm:"type:varchar(255);not null"`
	Path        string    `gorm:"type:varchar(1024);not null"`
	URL         string    `gorm:"type:varchar(2048)"`
	Size        int64     `gorm:"not null"`
	ContentType string    `gorm:"type:varchar(100)"`
	Round       int       `gorm:"not null;default:0"`
	Visible     bool      `gorm:"not null;default:true"`
	UploadedBy  uuid.UUID `gorm:"type:uuid;not null"`
	UploadedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DeliverableModel) TableName() string {
	return "order_deliverables"
}

// ToDomain converts the model to a domain Deliverable
func (m *DeliverableModel) ToDomain() fulfillment.Deliverable {
	return fulfillment.Deliverable{
		ID:          m.ID,
		OrderID:     m.OrderID,
		FileName:    m.FileName,
		Path:        m.Path,
		URL:         m.URL,
		Size:        m.Size,
		ContentType: m.ContentType,
		Round:       m.Round,
		Visible:     m.Visible,
		UploadedBy:  m.UploadedBy,
		UploadedAt:  m.UploadedAt,
	}
}

// FromDomain populates the model from a domain Deliverable
func (m *DeliverableModel) FromDomain(d *fulfillment.Deliverable) {
	m.ID = d.ID
	m.OrderID = d.OrderID
	m.FileName = d.FileName
	m.Path = d.Path
	m.URL = d.URL
	m.Size = d.Size
	m.ContentType = d.ContentType
	m.Round = d.Round
	m.Visible = d.Visible
	m.UploadedBy = d.UploadedBy
	m.UploadedAt = d.UploadedAt
}

// OrderSequenceModel holds the last event sequence handed out per order
type OrderSequenceModel struct {
	OrderID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastValue int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderSequenceModel) TableName() string {
	return "order_sequences"
}
