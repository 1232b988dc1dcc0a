package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/promotions"
)

type PromotionHandler struct {
	promotions *promotions.Service
	logger     *slog.Logger
}

func NewPromotionHandler(promotions *promotions.Service, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{promotions: promotions, logger: logger}
}

func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.promotions.FindAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: list})
}

func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	promo, err := h.promotions.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePromotionRequest
	if !decode(w, r, &req) {
		return
	}
	promo, err := h.promotions.Create(r.Context(), actorFrom(r), req.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, promo)
}

func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdatePromotionRequest
	if !decode(w, r, &req) {
		return
	}
	promo, err := h.promotions.Update(r.Context(), actorFrom(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.promotions.Delete(r.Context(), actorFrom(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PromotionHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.promotions.Redemptions(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: list})
}

func (h *PromotionHandler) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkGenerateRequest
	if !decode(w, r, &req) {
		return
	}
	codes, err := h.promotions.BulkGenerate(r.Context(), actorFrom(r), req.Prefix, req.Count)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BulkGenerateResponse{Codes: codes, Count: len(codes)})
}

// Validate checks a code for the caller's organization. An unusable code
// is a 200 with valid=false, not an error.
func (h *PromotionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidatePromotionRequest
	if !decode(w, r, &req) {
		return
	}
	orgID := middleware.GetOrganizationID(r.Context())
	result, err := h.promotions.Validate(r.Context(), req.Code, req.Plan(), &orgID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PromotionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req dto.RedeemPromotionRequest
	if !decode(w, r, &req) {
		return
	}
	redemption, err := h.promotions.Redeem(r.Context(), req.Code, middleware.GetOrganizationID(r.Context()), req.DiscountApplied)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Debug("redemption served",
		"redemption_id", redemption.ID,
		"org_id", redemption.OrganizationID,
		"user", middleware.GetUserEmail(r.Context()),
	)
	writeJSON(w, http.StatusCreated, redemption)
}
