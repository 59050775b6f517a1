package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/guayoyo/loyalty-service/internal/api/dto"
	"github.com/guayoyo/loyalty-service/internal/tiers"
)

// TiersHandler serves the static tier catalog.
type TiersHandler struct {
	catalog *tiers.Catalog
}

// NewTiersHandler constructs handler.
func NewTiersHandler(catalog *tiers.Catalog) *TiersHandler {
	return &TiersHandler{catalog: catalog}
}

// List handles GET /api/v1/tiers.
func (h *TiersHandler) List(c *fiber.Ctx) error {
	defs := h.catalog.Tiers()
	items := make([]dto.TierResponse, 0, len(defs))
	for _, def := range defs {
		items = append(items, dto.NewTierResponse(def))
	}
	return c.JSON(fiber.Map{"data": items})
}
