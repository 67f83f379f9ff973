// internal/handler/oven_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instrument-service/internal/control"
	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

// OvenHandler exposes the closed-loop temperature controller
type OvenHandler struct {
	oven   *service.OvenService
	logger *utils.ServiceLogger
}

// NewOvenHandler creates a new oven handler
func NewOvenHandler(oven *service.OvenService, logger *zap.Logger) *OvenHandler {
	return &OvenHandler{
		oven:   oven,
		logger: utils.NewServiceLogger(logger, "oven-handler"),
	}
}

// RegisterRoutes registers oven routes
func (h *OvenHandler) RegisterRoutes(router *gin.RouterGroup) {
	oven := router.Group("/oven")
	{
		oven.GET("", h.State)
		oven.PUT("/setpoint", h.SetSetpoint)
		oven.POST("/start", h.Start)
		oven.POST("/stop", h.Stop)
		oven.GET("/history", h.History)
	}
}

// State reports the loop's setpoint, envelope and last tick
func (h *OvenHandler) State(c *gin.Context) {
	if h.oven == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Oven is not configured", nil)
		return
	}
	controller := h.oven.Controller()
	heater := controller.Heater()

	utils.SuccessResponse(c, http.StatusOK, "Oven state retrieved", gin.H{
		"running":       h.oven.Running(),
		"setpoint":      controller.Setpoint(),
		"sample_period": controller.SamplePeriod().String(),
		"heater": gin.H{
			"max_temperature": heater.MaxTemperature,
			"max_volts":       heater.MaxVolts,
			"max_current":     heater.MaxCurrent,
			"resistance":      heater.Resistance,
		},
		"last_tick": h.oven.LastTick(),
	})
}

// setpointRequest carries the target temperature
type setpointRequest struct {
	Setpoint float64 `json:"setpoint" binding:"required"`
}

// SetSetpoint changes the loop target
func (h *OvenHandler) SetSetpoint(c *gin.Context) {
	if h.oven == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Oven is not configured", nil)
		return
	}
	var req setpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.oven.SetSetpoint(req.Setpoint); err != nil {
		if errors.Is(err, control.ErrAboveHeaterMax) {
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "Setpoint rejected", err)
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Setpoint change failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Setpoint updated", gin.H{"setpoint": req.Setpoint})
}

// Start launches the control loop
func (h *OvenHandler) Start(c *gin.Context) {
	if h.oven == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Oven is not configured", nil)
		return
	}
	if err := h.oven.Start(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "Oven start failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Oven control loop started", nil)
}

// Stop halts the loop and de-energizes the heater
func (h *OvenHandler) Stop(c *gin.Context) {
	if h.oven == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Oven is not configured", nil)
		return
	}
	if err := h.oven.Stop(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Oven stop failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Oven control loop stopped", nil)
}

// History returns persisted control ticks
func (h *OvenHandler) History(c *gin.Context) {
	if h.oven == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Oven is not configured", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	ticks, err := h.oven.History(c.Request.Context(), limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "History query failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "History retrieved", ticks)
}
