package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one completed purchase. Rows are append-only: TotalPrice
// snapshots price * quantity at purchase time and is never recomputed, even
// if the product price changes later.
type Transaction struct {
	BaseModel
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Product    *Product  `json:"product,omitempty" validate:"-"`
	Quantity   int       `gorm:"not null" json:"quantity" validate:"required,gt=0"`
	TotalPrice float64   `gorm:"not null" json:"total_price"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
}
