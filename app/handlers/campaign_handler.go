// Package handlers contains HTTP request handlers and presentation layer logic for the admin API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/app/dto"
	businessflow "github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/business_flow"
	"github.com/bartoszkosiba-cpu/kreativia-mailing-2-sub001/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	StartCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
	ReinitializeQueue(c fiber.Ctx) error
	GetSendingInfo(c fiber.Ctx) error
	GetNextSendTime(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext creates a context with a deadline and request-scoped values
func (h *CampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}

func (h *CampaignHandler) campaignUUID(c fiber.Ctx) (string, bool) {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return "", false
	}
	req := dto.CampaignActionRequest{UUID: campaignUUID}
	if err := h.validator.Struct(&req); err != nil {
		return "", false
	}
	return campaignUUID, true
}

func (h *CampaignHandler) mapBusinessError(c fiber.Ctx, err error, fallbackCode, fallbackMessage string) error {
	switch {
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignAlreadyTerminal(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign already reached a terminal status", "CAMPAIGN_TERMINAL", nil)
	case businessflow.IsInvalidStatusTransition(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign status does not allow this action", "INVALID_TRANSITION", nil)
	case businessflow.IsCampaignNotActive(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is not active", "CAMPAIGN_NOT_ACTIVE", nil)
	}
	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// StartCampaign activates a scheduled or paused campaign
// @Summary Start Campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign started"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Status does not allow starting"
// @Router /api/v1/campaigns/{uuid}/start [post]
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	campaignUUID, ok := h.campaignUUID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "A valid campaign UUID is required", "INVALID_CAMPAIGN_UUID", nil)
	}

	result, err := h.campaignFlow.StartCampaign(h.createRequestContext(c, "/api/v1/campaigns/:uuid/start"), campaignUUID)
	if err != nil {
		return h.mapBusinessError(c, err, "CAMPAIGN_START_FAILED", "Campaign start failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// PauseCampaign suspends an active campaign
// @Summary Pause Campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign paused"
// @Router /api/v1/campaigns/{uuid}/pause [post]
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	campaignUUID, ok := h.campaignUUID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "A valid campaign UUID is required", "INVALID_CAMPAIGN_UUID", nil)
	}

	result, err := h.campaignFlow.PauseCampaign(h.createRequestContext(c, "/api/v1/campaigns/:uuid/pause"), campaignUUID)
	if err != nil {
		return h.mapBusinessError(c, err, "CAMPAIGN_PAUSE_FAILED", "Campaign pause failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CancelCampaign terminates a campaign and drops its live queue
// @Summary Cancel Campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign cancelled"
// @Router /api/v1/campaigns/{uuid}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c fiber.Ctx) error {
	campaignUUID, ok := h.campaignUUID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "A valid campaign UUID is required", "INVALID_CAMPAIGN_UUID", nil)
	}

	result, err := h.campaignFlow.CancelCampaign(h.createRequestContext(c, "/api/v1/campaigns/:uuid/cancel"), campaignUUID)
	if err != nil {
		return h.mapBusinessError(c, err, "CAMPAIGN_CANCEL_FAILED", "Campaign cancellation failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ReinitializeQueue rebuilds the campaign's dispatch queue from scratch
// @Summary Reinitialize Queue
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ReinitializeQueueResponse} "Queue rebuilt"
// @Router /api/v1/campaigns/{uuid}/reinitialize-queue [post]
func (h *CampaignHandler) ReinitializeQueue(c fiber.Ctx) error {
	campaignUUID, ok := h.campaignUUID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "A valid campaign UUID is required", "INVALID_CAMPAIGN_UUID", nil)
	}

	result, err := h.campaignFlow.ReinitializeQueue(h.createRequestContext(c, "/api/v1/campaigns/:uuid/reinitialize-queue"), campaignUUID)
	if err != nil {
		return h.mapBusinessError(c, err, "QUEUE_REINIT_FAILED", "Queue reinitialization failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetSendingInfo reports campaign sending progress
// @Summary Get Sending Info
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.SendingInfoResponse} "Sending progress"
// @Router /api/v1/campaigns/{uuid}/sending-info [get]
func (h *CampaignHandler) GetSendingInfo(c fiber.Ctx) error {
	campaignUUID, ok := h.campaignUUID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "A valid campaign UUID is required", "INVALID_CAMPAIGN_UUID", nil)
	}

	result, err := h.campaignFlow.SendingInfo(h.createRequestContext(c, "/api/v1/campaigns/:uuid/sending-info"), campaignUUID)
	if err != nil {
		return h.mapBusinessError(c, err, "SENDING_INFO_FAILED", "Failed to collect sending info")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sending info retrieved successfully", result)
}

// GetNextSendTime reports when the campaign will next transmit
// @Summary Get Next Send Time
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.NextSendTimeResponse} "Next send time"
// @Router /api/v1/campaigns/{uuid}/next-send-time [get]
func (h *CampaignHandler) GetNextSendTime(c fiber.Ctx) error {
	campaignUUID, ok := h.campaignUUID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "A valid campaign UUID is required", "INVALID_CAMPAIGN_UUID", nil)
	}

	result, err := h.campaignFlow.NextSendTime(h.createRequestContext(c, "/api/v1/campaigns/:uuid/next-send-time"), campaignUUID)
	if err != nil {
		return h.mapBusinessError(c, err, "NEXT_SEND_LOOKUP_FAILED", "Failed to compute next send time")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Next send time retrieved successfully", result)
}
