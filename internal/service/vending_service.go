package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-soda-machine/internal/model"
	"go-soda-machine/internal/repository"
	"go-soda-machine/internal/ws"
	"go-soda-machine/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrProductExists   = errors.New("product name already exists")
)

// ProductNotFoundError means neither exact nor substring resolution matched.
type ProductNotFoundError struct {
	Name string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.Name)
}

// InsufficientStockError carries what the machine can still serve.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock, available: %d", e.Available)
}

// PurchaseResult is returned from a completed purchase.
type PurchaseResult struct {
	Product     *model.Product     `json:"product"`
	Transaction *model.Transaction `json:"transaction"`
	Message     string             `json:"message"`
}

type VendingService interface {
	Purchase(ctx context.Context, productName string, quantity int) (*PurchaseResult, error)
	CreateProduct(req *model.Product) error
	RestockProduct(id uuid.UUID, quantity int) (*model.Product, error)
	GetAllProducts() ([]model.Product, error)
	GetProductByID(id uuid.UUID) (*model.Product, error)
	GetAllTransactions() ([]model.Transaction, error)
	GetTransactionByID(id uuid.UUID) (*model.Transaction, error)
	GetMachineStats() (*repository.MachineStats, error)
}

type vendingService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	db              *gorm.DB
	hub             *ws.Hub
}

func NewVendingService(pRepo repository.ProductRepository, tRepo repository.TransactionRepository, db *gorm.DB, hub *ws.Hub) VendingService {
	return &vendingService{
		productRepo:     pRepo,
		transactionRepo: tRepo,
		db:              db,
		hub:             hub,
	}
}

// Purchase validates the request, resolves the product, and commits the
// stock decrement together with the ledger row in one database transaction.
// Note there is no lock between the stock check and the decrement: two
// concurrent purchases of the same product can oversell.
func (s *vendingService) Purchase(ctx context.Context, productName string, quantity int) (*PurchaseResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.resolveProduct(strings.TrimSpace(productName))
	if err != nil {
		return nil, err
	}

	if product.Stock < quantity {
		return nil, &InsufficientStockError{Available: product.Stock}
	}

	created := model.Transaction{
		ProductID:  product.ID,
		Quantity:   quantity,
		TotalPrice: product.Price * float64(quantity),
		Timestamp:  time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		newStock := product.Stock - quantity
		if err := s.productRepo.UpdateStock(tx, product.ID, newStock); err != nil {
			return err
		}
		if err := s.transactionRepo.Create(tx, &created); err != nil {
			return err
		}
		product.Stock = newStock
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.hub.BroadcastJSON(map[string]interface{}{
		"type":   "stock_update",
		"action": "purchase",
		"product": map[string]interface{}{
			"id":    product.ID,
			"name":  product.Name,
			"stock": product.Stock,
		},
		"transaction": map[string]interface{}{
			"id":          created.ID,
			"quantity":    created.Quantity,
			"total_price": created.TotalPrice,
		},
	})

	return &PurchaseResult{
		Product:     product,
		Transaction: &created,
		Message: fmt.Sprintf("Purchase complete: %d x %s for $%.2f.",
			quantity, product.Name, created.TotalPrice),
	}, nil
}

// resolveProduct tries an exact case-insensitive match first, then falls
// back to the first product (in name order) whose lowercase name contains
// the requested name. Name order makes the tie-break deterministic.
func (s *vendingService) resolveProduct(name string) (*model.Product, error) {
	product, err := s.productRepo.FindByName(name)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	products, err := s.productRepo.FindAll()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	for i := range products {
		if strings.Contains(strings.ToLower(products[i].Name), needle) {
			return &products[i], nil
		}
	}

	return nil, &ProductNotFoundError{Name: name}
}

func (s *vendingService) CreateProduct(req *model.Product) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return fmt.Errorf("validation failed: field '%s' failed on tag '%s'",
			firstErr.FailedField, firstErr.Tag)
	}

	existing, err := s.productRepo.FindByName(req.Name)
	if err == nil && existing != nil {
		return ErrProductExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.productRepo.Create(req); err != nil {
		return err
	}

	go s.hub.BroadcastJSON(map[string]interface{}{
		"type":   "stock_update",
		"action": "product_created",
		"product": map[string]interface{}{
			"id":    req.ID,
			"name":  req.Name,
			"stock": req.Stock,
			"price": req.Price,
		},
	})

	return nil
}

func (s *vendingService) RestockProduct(id uuid.UUID, quantity int) (*model.Product, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductNotFoundError{Name: id.String()}
		}
		return nil, err
	}

	newStock := product.Stock + quantity
	if err := s.productRepo.UpdateStock(s.db, product.ID, newStock); err != nil {
		return nil, err
	}
	product.Stock = newStock

	go s.hub.BroadcastJSON(map[string]interface{}{
		"type":   "stock_update",
		"action": "restock",
		"product": map[string]interface{}{
			"id":    product.ID,
			"name":  product.Name,
			"stock": product.Stock,
		},
	})

	return product, nil
}

func (s *vendingService) GetAllProducts() ([]model.Product, error) {
	return s.productRepo.FindAll()
}

func (s *vendingService) GetProductByID(id uuid.UUID) (*model.Product, error) {
	return s.productRepo.FindByID(id)
}

func (s *vendingService) GetAllTransactions() ([]model.Transaction, error) {
	return s.transactionRepo.FindAll()
}

func (s *vendingService) GetTransactionByID(id uuid.UUID) (*model.Transaction, error) {
	return s.transactionRepo.FindByID(id)
}

func (s *vendingService) GetMachineStats() (*repository.MachineStats, error) {
	return s.transactionRepo.GetMachineStats()
}
