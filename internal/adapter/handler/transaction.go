package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/service"
)

type TransactionHandler struct {
	Service *service.AccountService
	Log     *zap.Logger
}

// Request Models
type DepositRequest struct {
	AccountID string        `json:"account_id" validate:"required,uuid"`
	Amount    domain.Amount `json:"amount"`
}

type TransferRequest struct {
	FromID string        `json:"from_id" validate:"required,uuid"`
	ToID   string        `json:"to_id" validate:"required,uuid"`
	Amount domain.Amount `json:"amount"`
}

// Deposit API
func (h *TransactionHandler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := parseBody(c, "Deposit", &req); err != nil {
		return err
	}
	id, err := parseID("Deposit", "account_id", req.AccountID)
	if err != nil {
		return err
	}

	if err := h.Service.Deposit(c.UserContext(), id, req.Amount); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"status": "success", "message": "Money Deposited!"})
}

// Transfer API
func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := parseBody(c, "Transfer", &req); err != nil {
		return err
	}
	from, err := parseID("Transfer", "from_id", req.FromID)
	if err != nil {
		return err
	}
	to, err := parseID("Transfer", "to_id", req.ToID)
	if err != nil {
		return err
	}

	if err := h.Service.Transfer(c.UserContext(), from, to, req.Amount); err != nil {
		return err
	}

	h.Log.Info("transfer complete", zap.Stringer("from_id", from), zap.Stringer("to_id", to), zap.Stringer("amount", req.Amount))

	return c.JSON(fiber.Map{"status": "success", "message": "Transfer Complete!"})
}

func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	// Account ID comes from the URL (/accounts/:id/transactions)
	id, err := paramID(c, "History", "account id")
	if err != nil {
		return err
	}

	history, err := h.Service.History(c.UserContext(), id, c.QueryInt("limit", service.DefaultHistoryLimit))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"transactions": history,
	})
}
