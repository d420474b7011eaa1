package repository

import (
	"go-soda-machine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(tx *gorm.DB, transaction *model.Transaction) error
	FindAll() ([]model.Transaction, error)
	FindByID(id uuid.UUID) (*model.Transaction, error)
	GetMachineStats() (*MachineStats, error)
}

// MachineStats is the operator overview of the whole machine.
type MachineStats struct {
	TotalProducts     int64   `json:"total_products"`
	TotalTransactions int64   `json:"total_transactions"`
	UnitsSold         int64   `json:"units_sold"`
	Revenue           float64 `json:"revenue"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

// Create takes the caller's *gorm.DB so the ledger row commits atomically
// with the stock decrement.
func (r *transactionRepo) Create(tx *gorm.DB, transaction *model.Transaction) error {
	return tx.Create(transaction).Error
}

func (r *transactionRepo) FindAll() ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.Preload("Product").Order("created_at DESC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.Preload("Product").First(&transaction, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *transactionRepo) GetMachineStats() (*MachineStats, error) {
	var stats MachineStats

	if err := r.db.Model(&model.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Transaction{}).Count(&stats.TotalTransactions).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Transaction{}).
		Select("COALESCE(SUM(quantity), 0)").Scan(&stats.UnitsSold).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Transaction{}).
		Select("COALESCE(SUM(total_price), 0)").Scan(&stats.Revenue).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}
