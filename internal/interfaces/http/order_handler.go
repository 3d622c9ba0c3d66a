package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/billing"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// OrderHandler maneja pedidos y la solicitud de emisión fiscal (protegido).
type OrderHandler struct {
	uc      *sales.UseCase
	billing *billing.Coordinator
}

// NewOrderHandler construye el handler.
func NewOrderHandler(uc *sales.UseCase, coordinator *billing.Coordinator) *OrderHandler {
	return &OrderHandler{uc: uc, billing: coordinator}
}

// Create godoc
// @Summary      Crear pedido directo
// @Description  Descuenta inventario de las líneas de producto. status pending|confirmed (por defecto confirmed).
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateOrderRequest  true  "customer_id, line_items, discount, payment_method"
// @Success      201   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CreateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	order, err := h.uc.CreateOrder(c.Context(), sales.CreateOrderInput{
		CustomerID:    in.CustomerID,
		LineItems:     dto.ToLineItems(in.LineItems),
		Discount:      in.Discount,
		PaymentMethod: in.PaymentMethod,
		Status:        in.Status,
		ActorID:       userID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewOrderResponse(order))
}

// GetByID godoc
// @Summary      Obtener pedido
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pedido"
// @Success      200  {object}  dto.OrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	order, err := h.uc.GetOrder(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewOrderResponse(order))
}

// Confirm godoc
// @Summary      Confirmar pedido pendiente
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pedido"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/confirm [post]
func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	order, err := h.uc.Confirm(c.Context(), c.Params("id"), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewOrderResponse(order))
}

// Cancel godoc
// @Summary      Cancelar pedido
// @Description  Devuelve al inventario las salidas del pedido. No aplica a pedidos facturados
//
//	ni mientras haya una emisión fiscal en curso.
//
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pedido"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	order, err := h.uc.Cancel(c.Context(), c.Params("id"), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewOrderResponse(order))
}

// RequestInvoice godoc
// @Summary      Solicitar emisión fiscal del pedido
// @Description  200 con la factura emitida. 202 si la autoridad rechazó o no respondió: la factura
//
//	queda en estado error con last_error y la solicitud puede repetirse con la misma referencia.
//
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pedido"
// @Success      200  {object}  dto.InvoiceResponse
// @Success      202  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/invoice [post]
func (h *OrderHandler) RequestInvoice(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	inv, err := h.billing.RequestEmission(c.Context(), c.Params("id"), userID)
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusOK
	if inv.Status != entity.InvoiceStatusIssued && inv.Status != entity.InvoiceStatusCancelled {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(dto.NewInvoiceResponse(inv))
}

// GetInvoice godoc
// @Summary      Factura del pedido
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pedido"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/invoice [get]
func (h *OrderHandler) GetInvoice(c *fiber.Ctx) error {
	inv, err := h.billing.GetInvoiceByOrder(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}
