package handler

import (
	"net/http"

	"contact_hub/internal/domain"
	"contact_hub/internal/middleware"
	"contact_hub/internal/service"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContactHandler struct {
	identityService service.IdentityService
	merger          service.Merger
	log             logger.Logger
}

func NewContactHandler(identityService service.IdentityService, merger service.Merger, log logger.Logger) *ContactHandler {
	return &ContactHandler{
		identityService: identityService,
		merger:          merger,
		log:             log,
	}
}

func (h *ContactHandler) GetByID(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact ID"})
		return
	}

	contact, err := h.identityService.GetContact(c.Request.Context(), staff.TenantID, contactID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

// Update - PATCH контакта: переданные поля меняются, остальные остаются как есть
func (h *ContactHandler) Update(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contact ID"})
		return
	}

	var req service.ContactUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.identityService.UpdateContact(c.Request.Context(), staff.TenantID, contactID, req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, contact)
}

type LookupContactRequest struct {
	Channel string `json:"channel" binding:"required"`
	Value   string `json:"value" binding:"required"`
}

// Lookup сообщает, есть ли активный контакт с идентификатором канала
func (h *ContactHandler) Lookup(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	var req LookupContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, ok := domain.ParseChannel(req.Channel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported channel"})
		return
	}

	contact, err := h.identityService.Lookup(c.Request.Context(), staff.TenantID, channel, req.Value)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"exists": false})
			return
		}
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": true, "contact": contact})
}

type MergeContactsRequest struct {
	FromContactID uuid.UUID `json:"from_contact_id" binding:"required"`
	ToContactID   uuid.UUID `json:"to_contact_id" binding:"required"`
}

func (h *ContactHandler) Merge(c *gin.Context) {
	staff, _ := middleware.StaffFromContext(c)
	var req MergeContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Контакты чужого тенанта для сотрудника не существуют
	for _, id := range []uuid.UUID{req.FromContactID, req.ToContactID} {
		if _, err := h.identityService.GetContact(c.Request.Context(), staff.TenantID, id); err != nil {
			writeError(c, h.log, err)
			return
		}
	}

	result, err := h.merger.Merge(c.Request.Context(), req.FromContactID, req.ToContactID)
	if err != nil {
		status := apperrors.HTTPStatusFromError(err)
		body := gin.H{"error": err.Error()}
		if status >= http.StatusInternalServerError {
			h.log.Error("Merge failed", "error", err, "from_contact", req.FromContactID, "to_contact", req.ToContactID)
			body["error"] = "Internal server error"
		}
		if result != nil {
			body["stats"] = result.Stats
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, result)
}
