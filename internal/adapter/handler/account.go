package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/service"
)

type AccountHandler struct {
	Service *service.AccountService
	Log     *zap.Logger
}

// CreateAccountRequest defines what the user sends us
type CreateAccountRequest struct {
	OwnerName string `json:"owner_name" validate:"required,max=200"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := parseBody(c, "CreateAccount", &req); err != nil {
		return err
	}

	account, err := h.Service.OpenAccount(c.UserContext(), req.OwnerName)
	if err != nil {
		return err
	}

	h.Log.Info("account created", zap.Stringer("id", account.ID))
	return c.Status(http.StatusCreated).JSON(account)
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	id, err := paramID(c, "GetAccount", "account id")
	if err != nil {
		return err
	}

	account, err := h.Service.GetAccount(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(account)
}
