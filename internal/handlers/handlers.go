// Package handlers exposes the server's HTTP surface: the payment webhook,
// the license RPCs consumed by the Pro console, and the delta-changes feed
// consumed by sync clients.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/motium/motium-sync/internal/remote"
	"github.com/motium/motium-sync/internal/service"
	"github.com/motium/motium-sync/internal/webhook"
)

type Handlers struct {
	processor *webhook.Processor
	licenses  *service.LicenseService
	store     remote.Store
	logger    *log.Logger
}

func New(processor *webhook.Processor, licenses *service.LicenseService, store remote.Store, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.Default()
	}
	return &Handlers{
		processor: processor,
		licenses:  licenses,
		store:     store,
		logger:    logger,
	}
}

// Register wires all routes onto the router.
func (h *Handlers) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/webhooks/payment", h.PaymentWebhook)

	api := r.Group("/api")
	api.GET("/sync/changes", h.GetChanges)
	api.GET("/users/:id/premium-access", h.PremiumAccess)
	api.POST("/licenses/:id/assign", h.AssignLicense)
	api.POST("/licenses/:id/finalize", h.FinalizeAssignment)
	api.POST("/licenses/:id/cancel", h.CancelLicense)
	api.POST("/licenses/:id/unlink", h.UnlinkCollaborator)
	api.POST("/tenants/:id/regularize", h.RegularizePayment)
}

// PaymentWebhook receives provider events. A non-2xx answer makes the
// provider redeliver, which the processor's idempotence gate tolerates.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	var ev webhook.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if err := h.processor.Process(c.Request.Context(), ev); err != nil {
		h.logger.Printf("Webhook processing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetChanges serves the delta feed: all rows of an entity type updated
// strictly after the client's watermark.
func (h *Handlers) GetChanges(c *gin.Context) {
	entityType := c.Query("entity_type")
	if entityType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type is required"})
		return
	}

	since := time.Unix(0, 0).UTC()
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}

	changes, err := h.store.GetChanges(c.Request.Context(), entityType, since)
	if err != nil {
		h.logger.Printf("Changes query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

func (h *Handlers) PremiumAccess(c *gin.Context) {
	result, err := h.licenses.CheckPremiumAccess(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type assignRequest struct {
	CollaboratorID string `json:"collaborator_id" binding:"required"`
	TenantID       string `json:"tenant_id" binding:"required"`
}

// AssignLicense returns the typed assignment outcome: 200 for assigned or
// pending-cancellation, 409 with the rejection code for business rejections.
func (h *Handlers) AssignLicense(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collaborator_id and tenant_id are required"})
		return
	}

	result, err := h.licenses.AssignLicense(c.Request.Context(), c.Param("id"), req.CollaboratorID, req.TenantID)
	if err != nil {
		h.logger.Printf("License assignment failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assignment failed"})
		return
	}
	if result.Status == service.AssignmentRejected {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type finalizeRequest struct {
	CollaboratorID string `json:"collaborator_id" binding:"required"`
}

func (h *Handlers) FinalizeAssignment(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collaborator_id is required"})
		return
	}
	if err := h.licenses.FinalizeLicenseAssignment(c.Request.Context(), c.Param("id"), req.CollaboratorID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

type tenantRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
}

func (h *Handlers) CancelLicense(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}
	if err := h.licenses.CancelLicense(c.Request.Context(), c.Param("id"), req.TenantID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func (h *Handlers) UnlinkCollaborator(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}
	if err := h.licenses.UnlinkCollaborator(c.Request.Context(), c.Param("id"), req.TenantID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlinked"})
}

func (h *Handlers) RegularizePayment(c *gin.Context) {
	if err := h.licenses.RegularizePayment(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Printf("Payment regularization failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "regularization failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}
