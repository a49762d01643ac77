package ledger

import (
	"errors"
	"net/url"

	"paper-ledger/internal/application/charts"
	ledgersvc "paper-ledger/internal/application/ledger"
	"paper-ledger/internal/middleware"
	"paper-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for ledger endpoints.
type Handlers struct {
	Service *ledgersvc.Service
}

// Trade POST /api/v1/ledger/trade: validate and record one transaction,
// then return the updated portfolio and balance.
func (h *Handlers) Trade(c *fiber.Ctx) error {
	username := middleware.Username(c)
	if username == "" {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req ledgersvc.TxRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	snap, err := h.Service.Submit(c.UserContext(), username, req)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Transaction recorded", snap, nil)
}

// Portfolio GET /api/v1/ledger/portfolio
func (h *Handlers) Portfolio(c *fiber.Ctx) error {
	username := middleware.Username(c)
	snap, err := h.Service.Snapshot(c.UserContext(), username)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Portfolio fetched", snap, fiber.Map{"count": len(snap.Log)})
}

// Holdings GET /api/v1/ledger/holdings
func (h *Handlers) Holdings(c *fiber.Ctx) error {
	username := middleware.Username(c)
	holdings, err := h.Service.Store.Holdings(c.UserContext(), username)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Holdings fetched", holdings, fiber.Map{"count": len(holdings)})
}

// Holding GET /api/v1/ledger/holdings/:stock
func (h *Handlers) Holding(c *fiber.Ctx) error {
	username := middleware.Username(c)
	stock, err := url.PathUnescape(c.Params("stock"))
	if err != nil || stock == "" {
		return response.BadRequest(c, "Invalid stock")
	}
	qty, err := h.Service.Store.GetHoldingQuantity(c.UserContext(), username, stock)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Holding fetched", fiber.Map{"stock": stock, "quantity": qty}, nil)
}

// BalanceHistory GET /api/v1/ledger/balance-history
func (h *Handlers) BalanceHistory(c *fiber.Ctx) error {
	username := middleware.Username(c)
	points, err := h.Service.BalanceHistory(c.UserContext(), username)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Balance history fetched", points, fiber.Map{"count": len(points)})
}

// Chart GET /api/v1/ledger/chart: balance history as an HTML line chart.
func (h *Handlers) Chart(c *fiber.Ctx) error {
	username := middleware.Username(c)
	points, err := h.Service.BalanceHistory(c.UserContext(), username)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return charts.RenderBalanceHistory(c.Response().BodyWriter(), username, points)
}

// Reconcile GET /api/v1/ledger/reconcile
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	username := middleware.Username(c)
	rec, err := h.Service.Store.Reconcile(c.UserContext(), username)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Reconciliation complete", rec, nil)
}

// fail maps ledger errors to HTTP responses.
func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	var (
		ve *ledgersvc.ValidationError
		fe *ledgersvc.InsufficientFundsError
		he *ledgersvc.InsufficientHoldingsError
	)
	switch {
	case errors.As(err, &ve):
		return response.Error(c, ve.Error(), fiber.StatusBadRequest, fiber.Map{"field": ve.Field})
	case errors.As(err, &fe):
		return response.Error(c, fe.Error(), fiber.StatusUnprocessableEntity, fiber.Map{
			"have": fe.Have,
			"want": fe.Want,
		})
	case errors.As(err, &he):
		return response.Error(c, he.Error(), fiber.StatusUnprocessableEntity, fiber.Map{
			"stock": he.Instrument,
			"have":  he.Have,
			"want":  he.Want,
		})
	case errors.Is(err, ledgersvc.ErrConcurrentUpdate):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	default:
		log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Str("path", c.Path()).Msg("ledger: request failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}
