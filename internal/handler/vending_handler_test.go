package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-soda-machine/internal/handler"
	"go-soda-machine/internal/intent"
	"go-soda-machine/internal/middleware"
	"go-soda-machine/internal/model"
	"go-soda-machine/internal/repository"
	"go-soda-machine/internal/service"
)

// stubParser returns a fixed intent, standing in for the language service.
type stubParser struct {
	result intent.Intent
}

func (s stubParser) Parse(ctx context.Context, message string) intent.Intent {
	return s.result
}

var testSecret = []byte("test-secret")

func newTestApp(t *testing.T, parserResult intent.Intent) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Product{}, &model.Transaction{}, &model.User{}))

	require.NoError(t, db.Create(&[]model.Product{
		{Name: "Coca-Cola", Price: 2.50, Stock: 100},
		{Name: "Pepsi", Price: 2.20, Stock: 80},
		{Name: "Guaraná", Price: 2.00, Stock: 120},
	}).Error)

	operator := &model.User{Email: "operator@example.com", FullName: "Machine Operator"}
	require.NoError(t, operator.SetPassword("secret123"))
	require.NoError(t, db.Create(operator).Error)

	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	userRepo := repository.NewUserRepo(db)

	vendingService := service.NewVendingService(productRepo, txRepo, db, nil)
	authService := service.NewAuthService(userRepo, testSecret)

	vendingHandler := handler.NewVendingHandler(vendingService, stubParser{result: parserResult})
	authHandler := handler.NewAuthHandler(authService)

	app := fiber.New()
	app.Get("/", handler.Welcome)
	app.Get("/interface", handler.Interface)
	app.Get("/products/", vendingHandler.GetProducts)
	app.Get("/products/:id", vendingHandler.GetProduct)
	app.Get("/transactions/", vendingHandler.GetTransactions)
	app.Get("/transactions/:id", vendingHandler.GetTransaction)
	app.Get("/stats", vendingHandler.GetStats)
	app.Post("/interact/", vendingHandler.Interact)
	app.Post("/auth/login", authHandler.Login)

	requireAuth := middleware.RequireAuth(testSecret, userRepo)
	app.Post("/products/", requireAuth, vendingHandler.CreateProduct)
	app.Post("/products/:id/restock", requireAuth, vendingHandler.RestockProduct)

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func purchaseIntent(name string, quantity int) intent.Intent {
	return intent.Intent{
		Type:     intent.TypePurchase,
		Purchase: &intent.Purchase{ProductName: name, Quantity: quantity},
	}
}

func TestInteract(t *testing.T) {
	type testCase struct {
		name          string
		parserResult  intent.Intent
		wantStatus    int
		errorContains string
	}

	tests := []testCase{
		{
			name:         "SuccessfulPurchase",
			parserResult: purchaseIntent("coca-cola", 3),
			wantStatus:   200,
		},
		{
			name:          "UnknownIntent",
			parserResult:  intent.Unrecognized("Ambiguous or incomplete text"),
			wantStatus:    400,
			errorContains: "Ambiguous or incomplete text",
		},
		{
			name:          "ProductNotFound",
			parserResult:  purchaseIntent("Sprite", 1),
			wantStatus:    404,
			errorContains: "not found",
		},
		{
			name:          "InsufficientStock",
			parserResult:  purchaseIntent("Coca-Cola", 1000),
			wantStatus:    400,
			errorContains: "insufficient stock",
		},
		{
			name:          "InvalidQuantity",
			parserResult:  purchaseIntent("Coca-Cola", 0),
			wantStatus:    400,
			errorContains: "positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, db := newTestApp(t, tt.parserResult)

			status, body := doJSON(t, app, http.MethodPost, "/interact/",
				map[string]string{"message": "I want to buy something"}, nil)

			assert.Equal(t, tt.wantStatus, status)

			if tt.wantStatus != 200 {
				require.Contains(t, body, "error")
				assert.Contains(t, body["error"].(string), tt.errorContains)
				// Failed interactions never create ledger rows.
				var count int64
				require.NoError(t, db.Model(&model.Transaction{}).Count(&count).Error)
				assert.Zero(t, count)
				return
			}

			assert.Equal(t, "success", body["status"])
			assert.EqualValues(t, 97, body["stock_restante"])
			assert.Contains(t, body["message"], "3 x Coca-Cola")
			assert.Contains(t, body["message"], "7.50")
			require.Contains(t, body, "product")
			require.Contains(t, body, "transaction")
		})
	}

	t.Run("MissingMessage", func(t *testing.T) {
		app, _ := newTestApp(t, purchaseIntent("Coca-Cola", 1))

		status, body := doJSON(t, app, http.MethodPost, "/interact/",
			map[string]string{}, nil)

		assert.Equal(t, 400, status)
		assert.Contains(t, body["error"], "message")
	})
}

func TestCatalogEndpoints(t *testing.T) {
	app, _ := newTestApp(t, purchaseIntent("Pepsi", 2))

	t.Run("Welcome", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, "/", nil, nil)
		assert.Equal(t, 200, status)
		assert.Contains(t, body["message"], "Soda Machine")
	})

	t.Run("ListProducts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products/", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, 200, resp.StatusCode)
		var products []model.Product
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
		require.Len(t, products, 3)
		// Lexicographic order is part of the lookup contract.
		assert.Equal(t, "Coca-Cola", products[0].Name)
	})

	t.Run("TransactionsAfterPurchase", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPost, "/interact/",
			map[string]string{"message": "two pepsis please"}, nil)
		require.Equal(t, 200, status)

		req := httptest.NewRequest(http.MethodGet, "/transactions/", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, 200, resp.StatusCode)
		var transactions []model.Transaction
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&transactions))
		require.Len(t, transactions, 1)
		assert.Equal(t, 2, transactions[0].Quantity)
		assert.InDelta(t, 4.40, transactions[0].TotalPrice, 0.001)
		require.NotNil(t, transactions[0].Product)
		assert.Equal(t, "Pepsi", transactions[0].Product.Name)
	})

	t.Run("Stats", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodGet, "/stats", nil, nil)
		assert.Equal(t, 200, status)
		assert.EqualValues(t, 3, body["total_products"])
	})
}

func TestOperatorEndpoints(t *testing.T) {
	app, _ := newTestApp(t, purchaseIntent("Pepsi", 1))

	t.Run("RejectsMissingToken", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/products/",
			model.Product{Name: "Sprite", Price: 2.30, Stock: 50}, nil)
		assert.Equal(t, 401, status)
		assert.Contains(t, body["error"], "authorization")
	})

	t.Run("LoginAndCreateProduct", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/auth/login",
			map[string]string{"email": "operator@example.com", "password": "secret123"}, nil)
		require.Equal(t, 200, status)
		token, ok := body["token"].(string)
		require.True(t, ok)
		require.NotEmpty(t, token)

		auth := map[string]string{"Authorization": "Bearer " + token}

		status, body = doJSON(t, app, http.MethodPost, "/products/",
			model.Product{Name: "Sprite", Price: 2.30, Stock: 50}, auth)
		require.Equal(t, 201, status)
		assert.Equal(t, "Product created", body["message"])

		// Duplicate name is rejected.
		status, body = doJSON(t, app, http.MethodPost, "/products/",
			model.Product{Name: "Sprite", Price: 2.30, Stock: 50}, auth)
		assert.Equal(t, 400, status)
		assert.Contains(t, body["error"], "already exists")
	})

	t.Run("WrongPassword", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/auth/login",
			map[string]string{"email": "operator@example.com", "password": "nope"}, nil)
		assert.Equal(t, 401, status)
		assert.Contains(t, body["error"], "Invalid email or password")
	})
}
