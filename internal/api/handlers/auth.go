package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obsidian-neural/loop-service/internal/api/middleware"
	"github.com/obsidian-neural/loop-service/internal/domain/errors"
	"github.com/obsidian-neural/loop-service/internal/services/credits"
)

// AuthHandler handles credential verification endpoints.
type AuthHandler struct {
	authority credits.Authority
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authority credits.Authority) *AuthHandler {
	return &AuthHandler{
		authority: authority,
	}
}

// VerifyKeyResponse represents the verify_key response.
type VerifyKeyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VerifyKey handles POST /verify_key
// @Summary Verify an API key
// @Description Checks the presented API key against the credit ledger
// @Tags Auth
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 200 {object} VerifyKeyResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /api/v1/verify_key [post]
func (h *AuthHandler) VerifyKey(c *gin.Context) {
	if _, err := h.check(c); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, VerifyKeyResponse{
		Status:  "valid",
		Message: "API key valid",
	})
}

// CheckCreditsResponse represents the credits check response. The -1
// sentinels mean unlimited.
type CheckCreditsResponse struct {
	CreditsRemaining    int64 `json:"credits_remaining"`
	CreditsTotal        int64 `json:"credits_total"`
	CanGenerateStandard bool  `json:"can_generate_standard"`
	CostStandard        int64 `json:"cost_standard"`
}

// CheckCredits handles GET /auth/credits/check
// @Summary Check remaining credits
// @Description Returns the remaining and total credits for the presented API key
// @Tags Auth
// @Produce json
// @Param X-API-Key header string true "API key"
// @Success 200 {object} CheckCreditsResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /api/v1/auth/credits/check [get]
func (h *AuthHandler) CheckCredits(c *gin.Context) {
	check, err := h.check(c)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	cost := h.authority.Cost()
	resp := CheckCreditsResponse{
		CreditsRemaining: -1,
		CreditsTotal:     -1,
		CostStandard:     cost,
	}
	if check.Record != nil && check.Record.IsLimited {
		resp.CreditsRemaining = check.Record.CreditsRemaining()
		resp.CreditsTotal = check.Record.TotalCredits
	}
	resp.CanGenerateStandard = resp.CreditsRemaining == -1 || resp.CreditsRemaining >= cost

	c.JSON(http.StatusOK, resp)
}

// check runs the credit authority check for the request's API key and maps
// the outcome to domain errors.
func (h *AuthHandler) check(c *gin.Context) (credits.Result, error) {
	apiKey := middleware.GetAPIKey(c)

	check, err := h.authority.Check(c.Request.Context(), apiKey)
	if err != nil {
		return credits.Result{}, errors.NewInternalError("credit check failed", err)
	}

	switch check.Status {
	case credits.StatusOK:
		return check, nil
	case credits.StatusExpired:
		return check, errors.NewCredentialExpiredError()
	case credits.StatusExhausted:
		used, total := int64(0), int64(0)
		if check.Record != nil {
			used, total = check.Record.CreditsUsed, check.Record.TotalCredits
		}
		return check, errors.NewCredentialExhaustedError(used, total)
	default:
		return check, errors.NewCredentialNotFoundError()
	}
}
