package persistence

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderSortColumns are the columns an order listing may be sorted by
var orderSortColumns = []string{"created_at", "updated_at", "title", "status", "due_date", "revision_count", "completed_at"}

// OwnedBy limits a query to one partner's rows. A nil partner would read
// every tenant and panics.
func OwnedBy(partnerID uuid.UUID) func(*gorm.DB) *gorm.DB {
	if partnerID == uuid.Nil {
		panic("persistence: query without a partner")
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("partner_id = ?", partnerID)
	}
}

// SortedBy orders by column when it is one of allowed, else by fallback.
// Only "asc" in any case sorts ascending.
func SortedBy(column, dir string, allowed []string, fallback string) func(*gorm.DB) *gorm.DB {
	column = strings.TrimSpace(column)
	if !slices.Contains(allowed, column) {
		column = fallback
	}
	order := clause.OrderByColumn{
		Column: clause.Column{Name: column},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}

// Paged applies offset and limit. A non-positive size disables paging.
func Paged(offset, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if size <= 0 {
			return db
		}
		return db.Offset(offset).Limit(size)
	}
}
