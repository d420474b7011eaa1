package model

// Product is a soda available in the machine. Name is stored as given but
// looked up case-insensitively; stock only moves through the purchase
// workflow and operator restocks.
type Product struct {
	BaseModel
	Name  string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"name" validate:"required"`
	Price float64 `gorm:"not null;default:0" json:"price" validate:"gte=0"`
	Stock int     `gorm:"not null;default:0" json:"stock" validate:"gte=0"`

	Transactions []Transaction `json:"transactions,omitempty"`
}
