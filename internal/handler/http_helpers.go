package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/minutebank/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseTZOffset 读取必填的时区偏移参数，缺失或非法视为参数错误
func parseTZOffset(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return offset, true
}

// handleActionError 把 service 层的哨兵错误映射为 HTTP 状态码
func (a *API) handleActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotDefaultAction):
		respondError(c, http.StatusBadRequest, "Can only modify default actions")
	case errors.Is(err, service.ErrInvalidActionInput):
		respondError(c, http.StatusBadRequest, "Action text is required and minutes must not be negative")
	case errors.Is(err, service.ErrDuplicateAction):
		respondError(c, http.StatusConflict, "An action with this text already exists")
	case errors.Is(err, service.ErrActionNotFound):
		respondError(c, http.StatusNotFound, "Action not found")
	case errors.Is(err, service.ErrUnknownAction):
		respondError(c, http.StatusBadRequest, "Invalid action")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	default:
		a.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
