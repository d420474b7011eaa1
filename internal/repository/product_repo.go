package repository

import (
	"go-soda-machine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(product *model.Product) error
	FindAll() ([]model.Product, error)
	FindByID(id uuid.UUID) (*model.Product, error)
	FindByName(name string) (*model.Product, error)
	UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int) error
	Count() (int64, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

// FindAll returns products in lexicographic name order, which makes the
// purchase workflow's substring fallback deterministic.
func (r *productRepo) FindAll() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByName matches exactly but case-insensitively.
func (r *productRepo) FindByName(name string) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, "LOWER(name) = LOWER(?)", name).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateStock takes the caller's *gorm.DB so it can join an open transaction.
func (r *productRepo) UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int) error {
	return tx.Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock", newStock).Error
}

func (r *productRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Product{}).Count(&count).Error
	return count, err
}
