package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// InventoryHandler maneja las peticiones HTTP del libro de inventario (protegido).
type InventoryHandler struct {
	ledger *inventory.LedgerUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.LedgerUseCase) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

// RegisterMovement godoc
// @Summary      Registrar movimiento de inventario
// @Description  quantity es el delta con signo: inflow > 0, outflow < 0, adjustment != 0.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "product_id, type, quantity, unit_cost (entradas), reason"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	mov, err := h.ledger.Adjust(c.Context(), inventory.AdjustInput{
		ProductID:         in.ProductID,
		Delta:             in.Quantity,
		Kind:              in.Type,
		Reason:            in.Reason,
		ReferenceDocument: in.ReferenceDocument,
		ActorID:           userID,
		UnitValue:         in.UnitCost,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(mov))
}

// RegisterRecount godoc
// @Summary      Registrar conteo físico
// @Description  La cantidad contada reemplaza a la del libro mediante un movimiento recount.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecountRequest  true  "product_id, counted, reason"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/recounts [post]
func (h *InventoryHandler) RegisterRecount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.RecountRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	mov, err := h.ledger.Recount(c.Context(), inventory.RecountInput{
		ProductID:         in.ProductID,
		NewCount:          in.Counted,
		Reason:            in.Reason,
		ReferenceDocument: in.ReferenceDocument,
		ActorID:           userID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(mov))
}

// History godoc
// @Summary      Historial de movimientos de un producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id     path   string  true   "ID del producto"
// @Param        type   query  string  false  "inflow | outflow | adjustment | recount"
// @Param        from   query  string  false  "RFC3339"
// @Param        to     query  string  false  "RFC3339"
// @Param        limit  query  int     false  "máximo de movimientos"
// @Success      200    {object}  dto.MovementListResponse
// @Failure      400    {object}  dto.ErrorResponse
// @Failure      404    {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/movements [get]
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	productID := c.Params("id")
	filter, err := movementFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	movs, err := h.ledger.History(c.Context(), productID, filter)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.MovementResponse, 0, len(movs))
	for _, m := range movs {
		items = append(items, dto.NewMovementResponse(m))
	}
	return c.JSON(dto.MovementListResponse{ProductID: productID, Items: items})
}

func movementFilter(c *fiber.Ctx) (repository.MovementFilter, error) {
	f := repository.MovementFilter{Kind: c.Query("type"), Limit: c.QueryInt("limit", 0)}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("%w: %s debe ser RFC3339", domain.ErrInvalidInput, p.key)
		}
		*p.dst = &t
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("%w: limit negativo", domain.ErrInvalidInput)
	}
	return f, nil
}

// Verify godoc
// @Summary      Verificar la cadena de movimientos de un producto
// @Description  Reproduce la cadena y la compara con la existencia cacheada. Con reconcile=true
//
//	(solo admin) reescribe la existencia desde la cadena si difieren.
//
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id         path   string  true   "ID del producto"
// @Param        reconcile  query  bool    false  "reescribir el agregado"
// @Success      200  {object}  dto.VerifyResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/verify [get]
func (h *InventoryHandler) Verify(c *fiber.Ctx) error {
	productID := c.Params("id")
	var (
		res *inventory.VerifyResult
		err error
	)
	if c.QueryBool("reconcile", false) {
		if GetRole(c) != RoleAdmin {
			return writeError(c, fmt.Errorf("%w: reconcile requiere rol admin", domain.ErrForbidden))
		}
		res, err = h.ledger.Reconcile(c.Context(), productID)
	} else {
		res, err = h.ledger.Verify(c.Context(), productID)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewVerifyResponse(res))
}

// LowStock godoc
// @Summary      Productos bajo el mínimo
// @Description  Lista los productos cuya existencia está por debajo del mínimo, con la
//
//	cantidad sugerida para reponer hasta el doble del mínimo.
//
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "máximo de productos"
// @Success      200  {object}  dto.LowStockResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	var q dto.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return writeError(c, fmt.Errorf("%w: limit", domain.ErrInvalidInput))
	}
	list, err := h.ledger.LowStock(c.Context(), q.EffectiveLimit())
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.LowStockItemDTO, 0, len(list))
	for _, it := range list {
		items = append(items, dto.NewLowStockItem(it))
	}
	return c.JSON(fiber.Map{
		"total": len(items),
		"items": items,
	})
}
