package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/middleware"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/ports"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/service"
)

// Deps is everything the HTTP boundary needs.
type Deps struct {
	Accounts       *service.AccountService
	Loans          *service.LoanService
	Idempotency    ports.IdempotencyStore
	Locker         ports.Locker
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// NewApp builds the fiber app with every /v1 route mounted.
func NewApp(d Deps) *fiber.App {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Shutdown is driven by the serve command.
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.AccessLog(log))
	app.Use(cors.New())
	app.Use(middleware.RequestTimeout(d.RequestTimeout))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	accountHandler := &AccountHandler{Service: d.Accounts, Log: log}
	transactionHandler := &TransactionHandler{Service: d.Accounts, Log: log}
	loanHandler := &LoanHandler{Service: d.Loans, Log: log}

	idem := func(c *fiber.Ctx) error { return c.Next() }
	if d.Idempotency != nil {
		idem = middleware.Idempotency(d.Idempotency, d.Locker, log)
	}

	api := app.Group("/v1")

	api.Post("/accounts", accountHandler.CreateAccount)
	api.Get("/accounts/:id", accountHandler.GetAccount)
	api.Get("/accounts/:id/transactions", transactionHandler.GetHistory)
	api.Get("/accounts/:id/loans", loanHandler.ListLoans)

	api.Post("/deposit", transactionHandler.Deposit)
	api.Post("/transfer", idem, transactionHandler.Transfer)

	api.Post("/loans", loanHandler.RequestLoan)
	api.Get("/loans/:id", loanHandler.GetLoan)
	api.Get("/loans/:id/repayments", loanHandler.Repayments)
	api.Post("/loans/:id/approve", idem, loanHandler.ApproveLoan)
	api.Post("/loans/:id/repay", idem, loanHandler.RepayLoan)

	return app
}
