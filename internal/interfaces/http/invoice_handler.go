package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/billing"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

// InvoiceHandler consulta y anulación de facturas fiscales (protegido).
type InvoiceHandler struct {
	coordinator *billing.Coordinator
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(coordinator *billing.Coordinator) *InvoiceHandler {
	return &InvoiceHandler{coordinator: coordinator}
}

// GetByID godoc
// @Summary      Obtener factura
// @Tags         invoices
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la factura"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	inv, err := h.coordinator.GetInvoice(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// Cancel godoc
// @Summary      Anular factura ante la autoridad fiscal
// @Description  La justificación debe tener al menos 15 caracteres. No modifica inventario ni el pedido.
// @Tags         invoices
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CancelInvoiceRequest  true  "external_reference, justification"
// @Success      200   {object}  dto.InvoiceResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/invoices/cancel [post]
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CancelInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	inv, err := h.coordinator.Cancel(c.Context(), billing.CancelInput{
		ExternalReference: in.ExternalReference,
		Justification:     in.Justification,
		ActorID:           userID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// Document godoc
// @Summary      Descargar documento fiscal
// @Description  XML autorizado o PDF; si la autoridad no entrega el PDF se genera una representación local.
// @Tags         invoices
// @Security     Bearer
// @Produce      application/xml
// @Produce      application/pdf
// @Param        ref     path   string  true   "referencia externa"
// @Param        format  query  string  false  "xml | pdf (por defecto xml)"
// @Success      200
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/invoices/by-reference/{ref}/document [get]
func (h *InvoiceHandler) Document(c *fiber.Ctx) error {
	ref := c.Params("ref")
	format := c.Query("format", ports.DocumentFormatXML)
	doc, err := h.coordinator.FetchDocument(c.Context(), ref, format)
	if err != nil {
		return writeError(c, err)
	}
	contentType := "application/xml"
	if format == ports.DocumentFormatPDF {
		contentType = "application/pdf"
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+ref+`.`+format+`"`)
	return c.Send(doc)
}
