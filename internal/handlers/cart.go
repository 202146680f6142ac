// internal/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/imi-storefront/internal/i18n"
	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/services"
	"github.com/javajoker/imi-storefront/internal/utils"
)

type AddItemRequest struct {
	Product  models.Product           `json:"product"`
	Quantity int                      `json:"quantity" validate:"required,min=1"`
	Variant  *models.VariantSelection `json:"variant,omitempty"`
}

// UpdateItemRequest carries the new quantity. Zero or less removes the line.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type DrawerRequest struct {
	Open *bool `json:"open" validate:"required"`
}

type itemURI struct {
	ID string `uri:"id" validate:"required,composite_id"`
}

type CartHandler struct {
	cartService *services.CartService
}

func NewCartHandler(cartService *services.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	utils.SuccessResponse(c, h.cartService.Snapshot(), i18n.T(lang, i18n.KeyCartLoaded))
}

// POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.cartService.AddItem(c.Request.Context(), req.Product, req.Quantity, req.Variant); err != nil {
		h.handleError(c, err)
		return
	}

	h.respond(c, i18n.KeyCartItemAdded)
}

// PUT /cart/items/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	id, ok := h.itemID(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.cartService.UpdateQuantity(c.Request.Context(), id, *req.Quantity); err != nil {
		h.handleError(c, err)
		return
	}

	if *req.Quantity <= 0 {
		h.respond(c, i18n.KeyCartItemRemoved)
		return
	}
	h.respond(c, i18n.KeyCartItemUpdated)
}

// DELETE /cart/items/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	if err := h.cartService.RemoveItem(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	h.respond(c, i18n.KeyCartItemRemoved)
}

// DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.cartService.ClearCart(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}

	h.respond(c, i18n.KeyCartCleared)
}

// POST /cart/sync
func (h *CartHandler) SyncCart(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	if err := h.cartService.SyncCart(c.Request.Context()); err != nil {
		if errors.Is(err, services.ErrServiceClosed) {
			h.handleError(c, err)
			return
		}
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusBadGateway, i18n.T(lang, i18n.KeyCartSyncFailed), h.cartService.Snapshot())
		return
	}

	utils.SuccessResponse(c, h.cartService.Snapshot(), i18n.T(lang, i18n.KeyCartSynced))
}

// PUT /cart/drawer
func (h *CartHandler) SetDrawer(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req DrawerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	h.cartService.SetDrawerOpen(*req.Open)
	utils.SuccessResponse(c, h.cartService.Snapshot(), i18n.T(lang, i18n.KeyCartDrawer))
}

func (h *CartHandler) itemID(c *gin.Context) (models.CompositeID, bool) {
	var uri itemURI
	if err := c.ShouldBindUri(&uri); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return models.CompositeID{}, false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&uri)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return models.CompositeID{}, false
	}

	id, err := models.ParseCompositeID(uri.ID)
	if err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return models.CompositeID{}, false
	}
	return id, true
}

// respond returns the snapshot after a mutation. A mutation the backend did
// not accept still succeeds locally; the message says so.
func (h *CartHandler) respond(c *gin.Context, key string) {
	lang := utils.GetLangFromContext(c)
	snapshot := h.cartService.Snapshot()
	if snapshot.Dirty {
		key = i18n.KeyCartUnsynced
	}
	utils.SuccessResponse(c, snapshot, i18n.T(lang, key))
}

func (h *CartHandler) handleError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)
	_ = c.Error(err)

	switch {
	case errors.Is(err, services.ErrItemNotFound):
		utils.NotFoundResponse(c, i18n.KeyCartItemNotFound)
	case errors.Is(err, services.ErrInvalidQuantity):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationQuantity), nil)
	case errors.Is(err, services.ErrInvalidProduct):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "product.id"), nil)
	case errors.Is(err, services.ErrServiceClosed):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
