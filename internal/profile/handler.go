package profile

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the customer profile tabs.
type Handler struct {
	service *Service
}

// NewHandler constructs a profile HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Profile returns the full snapshot with its overview.
func (h *Handler) Profile(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(view)
}

// Cashflow returns the monthly cashflow series.
func (h *Handler) Cashflow(c *fiber.Ctx) error {
	flows, err := h.service.Cashflow(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"months": flows})
}

// Spending returns the category breakdown.
func (h *Handler) Spending(c *fiber.Ctx) error {
	totals, err := h.service.Spending(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"categories": totals})
}

// Income returns income sources.
func (h *Handler) Income(c *fiber.Ctx) error {
	sources, err := h.service.Income(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"sources": sources})
}

// Transactions returns a page of transactions.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	page, err := intQuery(c, "page")
	if err != nil {
		return err
	}
	size, err := intQuery(c, "page_size")
	if err != nil {
		return err
	}
	result, err := h.service.Transactions(c.UserContext(), c.Params("id"), TransactionQuery{
		AccountID: c.Query("account_id"),
		Page:      page,
		PageSize:  size,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// Accounts returns accounts and the balance trend.
func (h *Handler) Accounts(c *fiber.Ctx) error {
	days, err := intQuery(c, "days")
	if err != nil {
		return err
	}
	view, err := h.service.Accounts(c.UserContext(), c.Params("id"), days)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(view)
}

func intQuery(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid "+key)
	}
	return n, nil
}

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
