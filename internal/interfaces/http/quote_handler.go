package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
)

// QuoteHandler maneja el ciclo de vida de cotizaciones (protegido).
type QuoteHandler struct {
	uc *sales.UseCase
}

// NewQuoteHandler construye el handler.
func NewQuoteHandler(uc *sales.UseCase) *QuoteHandler {
	return &QuoteHandler{uc: uc}
}

// Create godoc
// @Summary      Crear cotización
// @Tags         quotes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateQuoteRequest  true  "customer_id, line_items, discount, valid_until"
// @Success      201   {object}  dto.QuoteResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/quotes [post]
func (h *QuoteHandler) Create(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CreateQuoteRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	var validUntil time.Time
	if in.ValidUntil != nil {
		validUntil = *in.ValidUntil
	}
	quote, err := h.uc.CreateQuote(c.Context(), sales.CreateQuoteInput{
		CustomerID: in.CustomerID,
		LineItems:  dto.ToLineItems(in.LineItems),
		Discount:   in.Discount,
		ValidUntil: validUntil,
		ActorID:    userID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewQuoteResponse(quote))
}

// GetByID godoc
// @Summary      Obtener cotización
// @Tags         quotes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la cotización"
// @Success      200  {object}  dto.QuoteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/quotes/{id} [get]
func (h *QuoteHandler) GetByID(c *fiber.Ctx) error {
	quote, err := h.uc.GetQuote(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewQuoteResponse(quote))
}

// Approve godoc
// @Summary      Aprobar cotización
// @Description  Crea (una sola vez) el pedido confirmado y descuenta inventario. Repetir la
//
//	aprobación devuelve el mismo pedido.
//
// @Tags         quotes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true   "ID de la cotización"
// @Param        body  body  dto.ApproveQuoteRequest  false  "payment_method"
// @Success      200   {object}  dto.OrderResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/quotes/{id}/approve [post]
func (h *QuoteHandler) Approve(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.ApproveQuoteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	order, err := h.uc.Approve(c.Context(), c.Params("id"), sales.ApproveInput{
		PaymentMethod: in.PaymentMethod,
		ActorID:       userID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewOrderResponse(order))
}

// Reject godoc
// @Summary      Rechazar cotización
// @Tags         quotes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la cotización"
// @Success      200  {object}  dto.QuoteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/quotes/{id}/reject [post]
func (h *QuoteHandler) Reject(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	quote, err := h.uc.Reject(c.Context(), c.Params("id"), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewQuoteResponse(quote))
}
