package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/catalog"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
)

// ProductHandler rutas /api/products. El alta es solo admin; la consulta la usan los tres roles.
type ProductHandler struct {
	catalog *catalog.ProductUseCase
}

func NewProductHandler(uc *catalog.ProductUseCase) *ProductHandler {
	return &ProductHandler{catalog: uc}
}

// Create godoc
// @Summary      Registrar producto
// @Description  Existencia y costo promedio inician en 0; se cargan con movimientos o compras.
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterProductRequest  true  "SKU, nombre, precio y mínimo"
// @Success      201   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/products [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var body dto.RegisterProductRequest
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(c)
	}
	created, err := h.catalog.Register(c.Context(), body)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// FindBySKU godoc
// @Summary      Buscar producto por SKU
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        sku  query  string  true  "código del producto"
// @Success      200  {object}  dto.ProductResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products [get]
func (h *ProductHandler) FindBySKU(c *fiber.Ctx) error {
	var q dto.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return writeError(c, fmt.Errorf("%w: query", domain.ErrInvalidInput))
	}
	product, err := h.catalog.GetBySKU(c.Context(), q.SKU)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(product)
}

// GetByID godoc
// @Summary      Obtener producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id} [get]
func (h *ProductHandler) GetByID(c *fiber.Ctx) error {
	product, err := h.catalog.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(product)
}
