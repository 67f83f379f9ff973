// internal/handler/instrument_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"instrument-service/internal/driver/gm3"
	"instrument-service/internal/driver/spd3303x"
	"instrument-service/internal/model"
	"instrument-service/internal/service"
	"instrument-service/internal/utils"
)

// InstrumentHandler exposes instrument read and control endpoints
type InstrumentHandler struct {
	instruments *service.InstrumentService
	logger      *utils.ServiceLogger
}

// NewInstrumentHandler creates a new instrument handler
func NewInstrumentHandler(instruments *service.InstrumentService, logger *zap.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		instruments: instruments,
		logger:      utils.NewServiceLogger(logger, "instrument-handler"),
	}
}

// RegisterRoutes registers instrument routes
func (h *InstrumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/instruments", h.ListInstruments)

	gaussmeter := router.Group("/gaussmeter")
	{
		gaussmeter.POST("/sample", h.Sample)
		gaussmeter.POST("/reset-sample", h.ResetAndSample)
		gaussmeter.GET("/readings", h.Readings)
		gaussmeter.GET("/properties", h.Properties)
		gaussmeter.GET("/settings", h.Settings)
		gaussmeter.POST("/kill", h.KillAllProcesses)
	}

	supply := router.Group("/power-supply")
	{
		supply.GET("", h.PowerSupplyInfo)
		supply.GET("/channels/:channel", h.ChannelState)
		supply.POST("/channels/:channel/output", h.SetChannelOutput)
		supply.PUT("/channels/:channel/voltage", h.SetChannelVoltage)
		supply.PUT("/channels/:channel/current", h.SetChannelCurrent)
		supply.PUT("/channels/:channel/limits/voltage", h.SetVoltageLimit)
		supply.PUT("/channels/:channel/limits/current", h.SetCurrentLimit)
		supply.POST("/zero", h.ZeroAllChannels)
	}

	daq := router.Group("/daq")
	{
		daq.GET("/temperature", h.Temperature)
		daq.GET("/scan", h.TemperatureScan)
	}
}

// ListInstruments lists configured instruments and their status
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Instruments retrieved", h.instruments.Instruments())
}

// Sample takes one gaussmeter measurement
func (h *InstrumentHandler) Sample(c *gin.Context) {
	reading, err := h.instruments.Sample(c.Request.Context())
	if err != nil {
		h.gaussmeterError(c, "Sampling failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Sample taken", reading)
}

// ResetAndSample zeroes the time index and samples once
func (h *InstrumentHandler) ResetAndSample(c *gin.Context) {
	reading, err := h.instruments.ResetAndSample(c.Request.Context())
	if err != nil {
		h.gaussmeterError(c, "Reset sampling failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Time reset, sample taken", reading)
}

// Readings returns persisted gaussmeter readings
func (h *InstrumentHandler) Readings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	instrumentID := c.Query("instrument_id")
	if instrumentID == "" {
		for _, instrument := range h.instruments.Instruments() {
			if instrument.InstrumentType == model.InstrumentTypeGaussmeter {
				instrumentID = instrument.InstrumentID
				break
			}
		}
	}
	if instrumentID == "" {
		utils.ErrorResponse(c, http.StatusNotFound, "Gaussmeter is not configured", nil)
		return
	}

	readings, err := h.instruments.Readings(c.Request.Context(), instrumentID, limit)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list readings", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Readings retrieved", readings)
}

// Properties returns the instrument's property report
func (h *InstrumentHandler) Properties(c *gin.Context) {
	gaussmeter := h.instruments.Gaussmeter()
	if gaussmeter == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Gaussmeter is not configured", nil)
		return
	}
	properties, err := gaussmeter.Properties(c.Request.Context())
	if err != nil {
		h.gaussmeterError(c, "Property query failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Properties retrieved", gin.H{"properties": properties})
}

// Settings returns the instrument's settings report
func (h *InstrumentHandler) Settings(c *gin.Context) {
	gaussmeter := h.instruments.Gaussmeter()
	if gaussmeter == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Gaussmeter is not configured", nil)
		return
	}
	settings, err := gaussmeter.Settings(c.Request.Context())
	if err != nil {
		h.gaussmeterError(c, "Settings query failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Settings retrieved", gin.H{"settings": settings})
}

// KillAllProcesses fires the instrument's kill command, best effort
func (h *InstrumentHandler) KillAllProcesses(c *gin.Context) {
	gaussmeter := h.instruments.Gaussmeter()
	if gaussmeter == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Gaussmeter is not configured", nil)
		return
	}
	gaussmeter.KillAllProcesses(c.Request.Context())
	utils.SuccessResponse(c, http.StatusAccepted, "Kill command sent", nil)
}

// PowerSupplyInfo returns identification and system status
func (h *InstrumentHandler) PowerSupplyInfo(c *gin.Context) {
	supply := h.instruments.PowerSupply()
	if supply == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Power supply is not configured", nil)
		return
	}

	identification, err := supply.Identification(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Identification query failed", err)
		return
	}
	status, err := supply.SystemStatus(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Status query failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Power supply status retrieved", gin.H{
		"identification": identification,
		"system_status":  status.String(),
	})
}

// ChannelState returns one channel's programmed and measured values
func (h *InstrumentHandler) ChannelState(c *gin.Context) {
	supply, channel, ok := h.supplyChannel(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	enabled, err := supply.ChannelEnabled(ctx, channel)
	if err != nil {
		h.supplyError(c, "Channel state query failed", err)
		return
	}
	setVolts, err := supply.SetVoltageQuery(ctx, channel)
	if err != nil {
		h.supplyError(c, "Set voltage query failed", err)
		return
	}
	setAmps, err := supply.SetCurrentQuery(ctx, channel)
	if err != nil {
		h.supplyError(c, "Set current query failed", err)
		return
	}
	measuredVolts, err := supply.MeasuredVoltage(ctx, channel)
	if err != nil {
		h.supplyError(c, "Measured voltage query failed", err)
		return
	}
	measuredAmps, err := supply.MeasuredCurrent(ctx, channel)
	if err != nil {
		h.supplyError(c, "Measured current query failed", err)
		return
	}

	voltageLimit, _ := supply.Limits().VoltageLimit(channel)
	currentLimit, _ := supply.Limits().CurrentLimit(channel)

	utils.SuccessResponse(c, http.StatusOK, "Channel state retrieved", gin.H{
		"channel":          channel,
		"enabled":          enabled,
		"set_voltage":      setVolts,
		"set_current":      setAmps,
		"measured_voltage": measuredVolts,
		"measured_current": measuredAmps,
		"voltage_limit":    voltageLimit,
		"current_limit":    currentLimit,
	})
}

// setValueRequest carries a voltage or current target
type setValueRequest struct {
	Value float64 `json:"value" binding:"required"`
}

// outputRequest switches a channel output
type outputRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetChannelOutput switches a channel's output on or off
func (h *InstrumentHandler) SetChannelOutput(c *gin.Context) {
	supply, channel, ok := h.supplyChannel(c)
	if !ok {
		return
	}
	var req outputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := supply.SetChannelState(c.Request.Context(), channel, *req.Enabled); err != nil {
		h.supplyError(c, "Output switch failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channel output updated", gin.H{"channel": channel, "enabled": *req.Enabled})
}

// SetChannelVoltage programs a channel's set voltage
func (h *InstrumentHandler) SetChannelVoltage(c *gin.Context) {
	supply, channel, ok := h.supplyChannel(c)
	if !ok {
		return
	}
	var req setValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := supply.SetVoltage(c.Request.Context(), channel, req.Value); err != nil {
		h.supplyError(c, "Set voltage failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Voltage programmed", gin.H{"channel": channel, "volts": req.Value})
}

// SetChannelCurrent programs a channel's set current
func (h *InstrumentHandler) SetChannelCurrent(c *gin.Context) {
	supply, channel, ok := h.supplyChannel(c)
	if !ok {
		return
	}
	var req setValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := supply.SetCurrent(c.Request.Context(), channel, req.Value); err != nil {
		h.supplyError(c, "Set current failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Current programmed", gin.H{"channel": channel, "amps": req.Value})
}

// SetVoltageLimit raises or lowers a channel's software voltage ceiling
func (h *InstrumentHandler) SetVoltageLimit(c *gin.Context) {
	supply, channel, ok := h.supplyChannel(c)
	if !ok {
		return
	}
	var req setValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := supply.SetVoltageLimit(c.Request.Context(), channel, req.Value); err != nil {
		h.supplyError(c, "Voltage limit change rejected", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Voltage limit updated", gin.H{"channel": channel, "volts": req.Value})
}

// SetCurrentLimit raises or lowers a channel's software current ceiling
func (h *InstrumentHandler) SetCurrentLimit(c *gin.Context) {
	supply, channel, ok := h.supplyChannel(c)
	if !ok {
		return
	}
	var req setValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := supply.SetCurrentLimit(c.Request.Context(), channel, req.Value); err != nil {
		h.supplyError(c, "Current limit change rejected", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Current limit updated", gin.H{"channel": channel, "amps": req.Value})
}

// ZeroAllChannels zeroes both channels and restores full-range limits
func (h *InstrumentHandler) ZeroAllChannels(c *gin.Context) {
	supply := h.instruments.PowerSupply()
	if supply == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Power supply is not configured", nil)
		return
	}
	if err := supply.ZeroAllChannels(c.Request.Context()); err != nil {
		h.supplyError(c, "Zeroing failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "All channels zeroed, limits restored", nil)
}

// Temperature reads the DAQ's pinned channel
func (h *InstrumentHandler) Temperature(c *gin.Context) {
	daq := h.instruments.DAQ()
	if daq == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Temperature DAQ is not configured", nil)
		return
	}
	value, err := daq.CurrentTemperature(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Temperature read failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Temperature read", gin.H{"temperature": value})
}

// TemperatureScan reads a channel range, tolerating dead channels
func (h *InstrumentHandler) TemperatureScan(c *gin.Context) {
	daq := h.instruments.DAQ()
	if daq == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Temperature DAQ is not configured", nil)
		return
	}
	first, err := strconv.Atoi(c.DefaultQuery("first", "0"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid first channel", err)
		return
	}
	last, err := strconv.Atoi(c.DefaultQuery("last", "7"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid last channel", err)
		return
	}

	readings, err := daq.ReadRange(c.Request.Context(), first, last)
	if err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Channel scan failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channels scanned", readings)
}

// supplyChannel resolves the driver and channel parameter, replying on error
func (h *InstrumentHandler) supplyChannel(c *gin.Context) (*spd3303x.Driver, int, bool) {
	supply := h.instruments.PowerSupply()
	if supply == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Power supply is not configured", nil)
		return nil, 0, false
	}
	channel, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid channel", err)
		return nil, 0, false
	}
	return supply, channel, true
}

// supplyError maps limit rejections to 422 and transport trouble to 503.
// Limit violations are policy rejections the client can correct, not
// instrument failures.
func (h *InstrumentHandler) supplyError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, spd3303x.ErrInvalidChannel):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.Is(err, spd3303x.ErrAboveChannelLimit),
		errors.Is(err, spd3303x.ErrAboveHardwareMax),
		errors.Is(err, spd3303x.ErrBelowLiveSetpoint):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, message, err)
	default:
		utils.ErrorResponse(c, http.StatusServiceUnavailable, message, err)
	}
}

// gaussmeterError distinguishes protocol exhaustion/timeouts from the rest
func (h *InstrumentHandler) gaussmeterError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, gm3.ErrUnknownCommand):
		utils.ErrorResponse(c, http.StatusBadRequest, message, err)
	case errors.Is(err, gm3.ErrTimeout):
		utils.ErrorResponse(c, http.StatusGatewayTimeout, message, err)
	case errors.Is(err, gm3.ErrRetryExhausted):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, message, err)
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}
