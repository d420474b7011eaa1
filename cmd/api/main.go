package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-soda-machine/internal/config"
	"go-soda-machine/internal/handler"
	"go-soda-machine/internal/intent"
	"go-soda-machine/internal/middleware"
	"go-soda-machine/internal/model"
	"go-soda-machine/internal/repository"
	"go-soda-machine/internal/service"
	"go-soda-machine/internal/ws"
	"go-soda-machine/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if cfg.Gemini.APIKey == "" {
		// Not fatal: catalog endpoints still work, /interact/ degrades
		// to "intent not understood" on every message.
		log.Println("Warning: GEMINI_API_KEY not set, message parsing will fail")
	}

	// 2. Setup Database
	db := database.Connect(cfg.DB.Path)
	if err := db.AutoMigrate(&model.Product{}, &model.Transaction{}, &model.User{}); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}

	// 3. Seed initial sodas and the operator account
	seedProducts(db)
	seedOperator(db, cfg)

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	userRepo := repository.NewUserRepo(db)

	parser := intent.NewGeminiParser(cfg.Gemini)
	secret := []byte(cfg.Auth.JWTSecret)

	vendingService := service.NewVendingService(productRepo, txRepo, db, wsHub)
	authService := service.NewAuthService(userRepo, secret)

	vendingHandler := handler.NewVendingHandler(vendingService, parser)
	authHandler := handler.NewAuthHandler(authService)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// 7. Routes
	app.Get("/", handler.Welcome)
	app.Get("/interface", handler.Interface)

	app.Get("/products/", vendingHandler.GetProducts)
	app.Get("/products/:id", vendingHandler.GetProduct)
	app.Get("/transactions/", vendingHandler.GetTransactions)
	app.Get("/transactions/:id", vendingHandler.GetTransaction)
	app.Get("/stats", vendingHandler.GetStats)

	app.Post("/interact/", vendingHandler.Interact)

	app.Post("/auth/login", authHandler.Login)

	// Operator-only catalog management
	requireAuth := middleware.RequireAuth(secret, userRepo)
	app.Post("/products/", requireAuth, vendingHandler.CreateProduct)
	app.Post("/products/:id/restock", requireAuth, vendingHandler.RestockProduct)

	// Live stock-update feed
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			log.Panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedProducts stocks the machine on first run.
func seedProducts(db *gorm.DB) {
	var count int64
	db.Model(&model.Product{}).Count(&count)
	if count > 0 {
		return
	}

	products := []model.Product{
		{Name: "Coca-Cola", Price: 2.50, Stock: 100},
		{Name: "Pepsi", Price: 2.20, Stock: 80},
		{Name: "Guaraná", Price: 2.00, Stock: 120},
	}
	if err := db.Create(&products).Error; err != nil {
		log.Printf("Warning: Failed to seed products: %v", err)
		return
	}
	log.Printf("Seeded %d products", len(products))
}

// seedOperator creates the default operator account if it doesn't exist.
func seedOperator(db *gorm.DB, cfg *config.Config) {
	userRepo := repository.NewUserRepo(db)

	if _, err := userRepo.FindByEmail(cfg.Auth.AdminEmail); err == nil {
		return
	}

	operator := &model.User{
		Email:    cfg.Auth.AdminEmail,
		FullName: "Machine Operator",
	}
	if err := operator.SetPassword(cfg.Auth.AdminPassword); err != nil {
		log.Printf("Warning: Failed to hash operator password: %v", err)
		return
	}
	if err := userRepo.Create(operator); err != nil {
		log.Printf("Warning: Failed to create operator user: %v", err)
		return
	}
	log.Printf("Operator user created: %s", cfg.Auth.AdminEmail)
}
