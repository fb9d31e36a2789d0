package verification

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bankverify/bankverify/internal/aggregator"
	"github.com/bankverify/bankverify/internal/audit"
)

// Handler exposes admin verification endpoints.
type Handler struct {
	service *Service
	trail   audit.Repository
}

// NewHandler constructs a verification HTTP handler. trail may be nil.
func NewHandler(service *Service, trail audit.Repository) *Handler {
	return &Handler{service: service, trail: trail}
}

type createRequest struct {
	Customer Customer `json:"customer"`
	Settings Settings `json:"settings"`
}

type extendRequest struct {
	Days int `json:"days"`
}

type requestResponse struct {
	Request
	Badge Badge `json:"badge"`
}

type listResponse struct {
	Items      []requestResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

func toResponse(r Request) requestResponse {
	if r.ConnectedAccounts == nil {
		r.ConnectedAccounts = []aggregator.Account{}
	}
	return requestResponse{Request: r, Badge: r.Status.Badge()}
}

func actorID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

// List returns a filtered page of requests.
func (h *Handler) List(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return mapError(err)
	}
	out := listResponse{Items: make([]requestResponse, 0, len(res.Items)), Total: res.Total, Page: res.Page, PageSize: res.PageSize, TotalPages: res.TotalPages}
	for _, item := range res.Items {
		out.Items = append(out.Items, toResponse(item))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Create sends a new verification request.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), CreateInput{Customer: req.Customer, Settings: req.Settings, AgentID: actorID(c)})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(created))
}

// Get returns a single request.
func (h *Handler) Get(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}

// Resend rotates the link and delivers it again.
func (h *Handler) Resend(c *fiber.Ctx) error {
	req, err := h.service.Resend(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}

// Extend pushes the expiry date out.
func (h *Handler) Extend(c *fiber.Ctx) error {
	var body extendRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req, err := h.service.Extend(c.UserContext(), c.Params("id"), actorID(c), body.Days)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}

// Cancel stops the request.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	req, err := h.service.Cancel(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}

// Trail returns the audit history of a request.
func (h *Handler) Trail(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.service.Get(c.UserContext(), id); err != nil {
		return mapError(err)
	}
	events := []audit.Event{}
	if h.trail != nil {
		found, err := h.trail.ListByTarget(c.UserContext(), audit.TargetVerification, id)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		if found != nil {
			events = found
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"verification_id": id, "events": events})
}

// Stats returns dashboard counters.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(stats)
}

// Statuses lists the badge of every status.
func (h *Handler) Statuses(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"statuses": AllBadges()})
}

func parseFilter(c *fiber.Ctx) (ListFilter, error) {
	filter := ListFilter{
		Search:  c.Query("search"),
		Status:  Status(c.Query("status")),
		AgentID: c.Query("agent"),
	}
	var err error
	if filter.From, err = parseTime(c.Query("from"), false); err != nil {
		return ListFilter{}, errors.New("from must be RFC3339 or YYYY-MM-DD")
	}
	if filter.To, err = parseTime(c.Query("to"), true); err != nil {
		return ListFilter{}, errors.New("to must be RFC3339 or YYYY-MM-DD")
	}
	if v := c.Query("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return ListFilter{}, errors.New("page must be an integer")
		}
	}
	if v := c.Query("page_size"); v != "" {
		if filter.PageSize, err = strconv.Atoi(v); err != nil {
			return ListFilter{}, errors.New("page_size must be an integer")
		}
	}
	return filter, nil
}

// parseTime accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseTime(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrActionNotAllowed):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
