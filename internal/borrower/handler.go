package borrower

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/aggregator"
	"github.com/bankverify/bankverify/internal/verification"
)

// Handler exposes the token-gated borrower endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a borrower HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type connectRequest struct {
	Provider string `json:"provider"`
}

type accountsRequest struct {
	Accounts []aggregator.Account `json:"accounts"`
}

type auditRequest struct {
	Token    string         `json:"token"`
	Action   string         `json:"action"`
	Metadata map[string]any `json:"metadata"`
}

// Validate checks the link token and returns the wizard state.
func (h *Handler) Validate(c *fiber.Ctx) error {
	state, err := h.service.Validate(c.UserContext(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(state)
}

// Start leaves the welcome page.
func (h *Handler) Start(c *fiber.Ctx) error {
	state, err := h.service.Start(c.UserContext(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(state)
}

// CustomerInfo accepts the missing personal data.
func (h *Handler) CustomerInfo(c *fiber.Ctx) error {
	var update verification.Customer
	if err := c.BodyParser(&update); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	state, err := h.service.SubmitCustomerInfo(c.UserContext(), c.Params("token"), update)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(state)
}

// Consent records the data-sharing decision.
func (h *Handler) Consent(c *fiber.Ctx) error {
	var input ConsentInput
	if err := c.BodyParser(&input); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	state, err := h.service.Consent(c.UserContext(), c.Params("token"), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(state)
}

// Connect initiates a bank connection with the chosen provider.
func (h *Handler) Connect(c *fiber.Ctx) error {
	var req connectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	initiation, err := h.service.Connect(c.UserContext(), c.Params("token"), req.Provider)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(initiation)
}

// Accounts records the accounts reported by the aggregator.
func (h *Handler) Accounts(c *fiber.Ctx) error {
	var req accountsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	state, err := h.service.LinkAccounts(c.UserContext(), c.Params("token"), req.Accounts)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(state)
}

// Complete finalises the verification.
func (h *Handler) Complete(c *fiber.Ctx) error {
	completion, err := h.service.Complete(c.UserContext(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(completion)
}

// Completion returns the final summary, fabricating one if the lookup fails.
func (h *Handler) Completion(c *fiber.Ctx) error {
	token := c.Params("token")
	completion, err := h.service.Completion(c.UserContext(), token)
	if err != nil {
		kind, ok := KindOf(err)
		if !ok || (kind != KindNetwork && kind != KindCompletion) {
			return respondError(c, err)
		}
		completion = h.service.FallbackCompletion(c.UserContext(), token)
	}
	return c.Status(http.StatusOK).JSON(completion)
}

// ErrorInfo returns the display for an error kind.
func (h *Handler) ErrorInfo(c *fiber.Ctx) error {
	display, ok := Describe(ErrorKind(c.Params("kind")))
	if !ok {
		return fiber.NewError(http.StatusNotFound, "unknown error kind")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"error": display})
}

// Audit accepts a client-side wizard event. It always answers 202.
func (h *Handler) Audit(c *fiber.Ctx) error {
	var req auditRequest
	if err := c.BodyParser(&req); err == nil {
		h.service.Track(c.UserContext(), req.Token, req.Action, req.Metadata)
	}
	return c.SendStatus(http.StatusAccepted)
}

func respondError(c *fiber.Ctx, err error) error {
	if kind, ok := KindOf(err); ok {
		display, _ := Describe(kind)
		return c.Status(kindStatus(kind)).JSON(fiber.Map{"error": display})
	}

	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{
			"error":         "step_out_of_order",
			"current_step":  stepErr.Current,
			"expected_step": stepErr.Expected,
		})
	}
	var missing *MissingFieldsError
	if errors.As(err, &missing) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":  "missing_fields",
			"fields": missing.Fields,
		})
	}

	switch {
	case errors.Is(err, verification.ErrInvalidCustomer),
		errors.Is(err, ErrConsentIncomplete),
		errors.Is(err, ErrNoConnectedAccounts),
		errors.Is(err, ErrInvalidAccount),
		errors.Is(err, aggregator.ErrUnknownProvider):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func kindStatus(kind ErrorKind) int {
	switch kind {
	case KindInvalid:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindConsentDeclined:
		return http.StatusForbidden
	case KindConnection:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
