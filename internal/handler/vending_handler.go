package handler

import (
	"context"
	"errors"

	"go-soda-machine/internal/intent"
	"go-soda-machine/internal/model"
	"go-soda-machine/internal/service"
	"go-soda-machine/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IntentParser is what the interact pipeline needs from the language-service
// adapter. Satisfied by intent.GeminiParser; tests substitute a stub.
type IntentParser interface {
	Parse(ctx context.Context, message string) intent.Intent
}

type VendingHandler struct {
	service service.VendingService
	parser  IntentParser
}

func NewVendingHandler(s service.VendingService, p IntentParser) *VendingHandler {
	return &VendingHandler{service: s, parser: p}
}

type InteractRequest struct {
	Message string `json:"message" validate:"required"`
}

// Interact runs the free-text pipeline: parse the message into an intent,
// and if it is a purchase, execute the workflow.
func (h *VendingHandler) Interact(c *fiber.Ctx) error {
	var req InteractRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "message is required"})
	}

	in := h.parser.Parse(c.UserContext(), req.Message)

	switch in.Type {
	case intent.TypePurchase:
		result, err := h.service.Purchase(c.UserContext(), in.Purchase.ProductName, in.Purchase.Quantity)
		if err != nil {
			return purchaseError(c, err)
		}
		return c.JSON(fiber.Map{
			"status":         "success",
			"message":        result.Message,
			"stock_restante": result.Product.Stock,
			"product":        result.Product,
			"transaction":    result.Transaction,
		})

	case intent.TypeUnknown:
		return c.Status(400).JSON(fiber.Map{"error": "Intent not understood: " + in.Unknown.Reason})
	}

	return c.Status(500).JSON(fiber.Map{"error": "Unexpected error interpreting the message"})
}

// purchaseError maps workflow failures onto client-visible statuses.
func purchaseError(c *fiber.Ctx, err error) error {
	var notFound *service.ProductNotFoundError
	var insufficient *service.InsufficientStockError

	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &insufficient):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &notFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
}

func (h *VendingHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(products)
}

func (h *VendingHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	product, err := h.service.GetProductByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Product not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(product)
}

func (h *VendingHandler) GetTransactions(c *fiber.Ctx) error {
	transactions, err := h.service.GetAllTransactions()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(transactions)
}

func (h *VendingHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction ID"})
	}

	transaction, err := h.service.GetTransactionByID(id)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Transaction not found"})
	}
	return c.JSON(transaction)
}

func (h *VendingHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.service.GetMachineStats()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(stats)
}

func (h *VendingHandler) CreateProduct(c *fiber.Ctx) error {
	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.CreateProduct(&product); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *VendingHandler) RestockProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	var req RestockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	product, err := h.service.RestockProduct(id, req.Quantity)
	if err != nil {
		return purchaseError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Product restocked", "data": product})
}
