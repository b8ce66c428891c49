package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/domain"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/service"
)

type LoanHandler struct {
	Service *service.LoanService
	Log     *zap.Logger
}

type LoanRequest struct {
	BorrowerID string        `json:"borrower_id" validate:"required,uuid"`
	Amount     domain.Amount `json:"amount"`
}

type ApproveRequest struct {
	LenderID string `json:"lender_id" validate:"required,uuid"`
}

type RepayRequest struct {
	Amount domain.Amount `json:"amount"`
}

func (h *LoanHandler) RequestLoan(c *fiber.Ctx) error {
	var req LoanRequest
	if err := parseBody(c, "RequestLoan", &req); err != nil {
		return err
	}
	borrower, err := parseID("RequestLoan", "borrower_id", req.BorrowerID)
	if err != nil {
		return err
	}

	res, err := h.Service.RequestLoan(c.UserContext(), borrower, req.Amount)
	if err != nil {
		return err
	}
	h.Log.Info("loan requested", zap.Stringer("loan_id", res.Record.ID), zap.Stringer("amount", req.Amount))
	return c.Status(http.StatusCreated).JSON(res)
}

func (h *LoanHandler) ApproveLoan(c *fiber.Ctx) error {
	loanID, err := paramID(c, "ApproveLoan", "loan id")
	if err != nil {
		return err
	}
	var req ApproveRequest
	if err := parseBody(c, "ApproveLoan", &req); err != nil {
		return err
	}
	lender, err := parseID("ApproveLoan", "lender_id", req.LenderID)
	if err != nil {
		return err
	}

	res, err := h.Service.ApproveLoan(c.UserContext(), loanID, lender)
	if err != nil {
		return err
	}
	h.Log.Info("loan approved", zap.Stringer("loan_id", loanID), zap.Stringer("lender_id", lender))
	return c.JSON(res)
}

func (h *LoanHandler) RepayLoan(c *fiber.Ctx) error {
	loanID, err := paramID(c, "RepayLoan", "loan id")
	if err != nil {
		return err
	}
	var req RepayRequest
	if err := parseBody(c, "RepayLoan", &req); err != nil {
		return err
	}

	res, err := h.Service.RepayLoan(c.UserContext(), loanID, req.Amount)
	if err != nil {
		return err
	}
	h.Log.Info("loan repayment", zap.Stringer("loan_id", loanID), zap.Stringer("remaining", res.Record.Remaining))
	return c.JSON(res)
}

func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	loanID, err := paramID(c, "GetLoan", "loan id")
	if err != nil {
		return err
	}
	loan, err := h.Service.GetLoan(c.UserContext(), loanID)
	if err != nil {
		return err
	}
	return c.JSON(loan)
}

func (h *LoanHandler) Repayments(c *fiber.Ctx) error {
	loanID, err := paramID(c, "Repayments", "loan id")
	if err != nil {
		return err
	}
	reps, err := h.Service.Repayments(c.UserContext(), loanID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"repayments": reps})
}

// ListLoans serves /accounts/:id/loans.
func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	accountID, err := paramID(c, "ListLoans", "account id")
	if err != nil {
		return err
	}
	loans, err := h.Service.ListLoans(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"loans": loans})
}
