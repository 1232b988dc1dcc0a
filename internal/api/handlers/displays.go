package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/database/models"
	"gorm.io/gorm"
)

// DisplayHandler manages the screens an organization has paired. Creating
// one is what the screen quota guards.
type DisplayHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDisplayHandler(db *gorm.DB, logger *slog.Logger) *DisplayHandler {
	return &DisplayHandler{db: db, logger: logger}
}

func (h *DisplayHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	p := dto.PaginationFromRequest(r)

	query := h.db.WithContext(r.Context()).Model(&models.Display{}).Where("organization_id = ?", orgID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	var displays []models.Display
	if err := query.Order("created_at DESC").Offset(p.Offset()).Limit(p.PerPage).Find(&displays).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       displays,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: p.TotalPages(total),
	})
}

func (h *DisplayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDisplayRequest
	if !decode(w, r, &req) {
		return
	}

	display := models.Display{
		OrganizationID:   middleware.GetOrganizationID(r.Context()),
		Name:             req.Name,
		DeviceIdentifier: req.DeviceIdentifier,
		Location:         req.Location,
		Status:           models.DisplayPairing,
	}
	if err := h.db.WithContext(r.Context()).Create(&display).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("display created", "id", display.ID, "org_id", display.OrganizationID)
	writeJSON(w, http.StatusCreated, display)
}

func (h *DisplayHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	orgID := middleware.GetOrganizationID(r.Context())

	var display models.Display
	err := h.db.WithContext(r.Context()).Where("id = ? AND organization_id = ?", id, orgID).First(&display).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Display not found"})
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(&display).Error; err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
