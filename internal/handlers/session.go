// internal/handlers/session.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/i18n"
	"github.com/javajoker/imi-storefront/internal/services"
	"github.com/javajoker/imi-storefront/internal/utils"
)

// SessionObserver is the part of auth.Observer the session endpoints use.
type SessionObserver interface {
	Check()
	Status() auth.Status
	Identity() *auth.Identity
}

// TokenStore writes the credential the observer reads.
type TokenStore interface {
	SetToken(token string) error
	ClearToken() error
}

type StartSessionRequest struct {
	Token string `json:"token" validate:"required"`
}

type SessionResponse struct {
	Status   auth.Status       `json:"status"`
	UserID   string            `json:"userId,omitempty"`
	Username string            `json:"username,omitempty"`
	Cart     services.Snapshot `json:"cart"`
}

// SessionHandler stands in for the storefront's sign-in flow: it stores or
// removes the credential and has the observer pick up the change at once.
type SessionHandler struct {
	tokens      TokenStore
	decoder     auth.Decoder
	observer    SessionObserver
	cartService *services.CartService
}

func NewSessionHandler(tokens TokenStore, decoder auth.Decoder, observer SessionObserver, cartService *services.CartService) *SessionHandler {
	return &SessionHandler{
		tokens:      tokens,
		decoder:     decoder,
		observer:    observer,
		cartService: cartService,
	}
}

// GET /session
func (h *SessionHandler) GetSession(c *gin.Context) {
	utils.SuccessResponse(c, h.session(), "")
}

// POST /session
func (h *SessionHandler) StartSession(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if _, err := h.decoder.Decode(req.Token); err != nil {
		_ = c.Error(err)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeySessionInvalid), err.Error())
		return
	}

	if err := h.tokens.SetToken(req.Token); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	h.observer.Check()

	utils.SuccessResponse(c, h.session(), i18n.T(lang, i18n.KeySessionStarted))
}

// DELETE /session
func (h *SessionHandler) EndSession(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	if err := h.tokens.ClearToken(); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	h.observer.Check()

	utils.SuccessResponse(c, h.session(), i18n.T(lang, i18n.KeySessionEnded))
}

func (h *SessionHandler) session() SessionResponse {
	resp := SessionResponse{
		Status: h.observer.Status(),
		Cart:   h.cartService.Snapshot(),
	}
	if identity := h.observer.Identity(); identity != nil {
		resp.UserID = identity.UserID
		resp.Username = identity.Username
	}
	return resp
}
