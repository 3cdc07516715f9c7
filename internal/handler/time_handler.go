package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minutebank/internal/service"
)

// GetTime 返回当前用户的累计时间
func (a *API) GetTime(c *gin.Context) {
	total, err := a.ledger.Total(currentUserID(c))
	if err != nil {
		a.handleActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.FormatMinutes(total))
}

// AddTime 打卡一次动作并返回新的累计时间
func (a *API) AddTime(c *gin.Context) {
	var payload struct {
		Action string `json:"action"`
	}
	if !bindJSON(c, &payload, "action is required") {
		return
	}

	total, err := a.ledger.LogAction(currentUserID(c), payload.Action)
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, service.FormatMinutes(total))
}

// GetTodayTime 返回客户端本地"今日"内累计的时间。
// tz_offset 为必填的分钟偏移（getTimezoneOffset 约定），每次请求重新求值。
func (a *API) GetTodayTime(c *gin.Context) {
	offset, ok := parseTZOffset(c.Query("tz_offset"))
	if !ok {
		respondError(c, http.StatusBadRequest, "tz_offset is required")
		return
	}

	total, err := a.ledger.TodayTotal(currentUserID(c), offset)
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, service.FormatMinutes(total))
}

// GetTodayActions 返回"今日"内去重的动作文案与次数
func (a *API) GetTodayActions(c *gin.Context) {
	offset, ok := parseTZOffset(c.Query("tz_offset"))
	if !ok {
		respondError(c, http.StatusBadRequest, "tz_offset is required")
		return
	}

	summary, err := a.ledger.TodayActions(currentUserID(c), offset)
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"distinct": summary.Distinct, "counts": summary.Counts})
}

// ResetToday 删除"今日"内的打卡记录并回退相应的累计分钟数
func (a *API) ResetToday(c *gin.Context) {
	var payload struct {
		TZOffset *int `json:"tz_offset"`
	}
	if !bindJSON(c, &payload, "tz_offset is required") {
		return
	}
	if payload.TZOffset == nil {
		respondError(c, http.StatusBadRequest, "tz_offset is required")
		return
	}

	deleted, subtracted, err := a.ledger.ResetToday(currentUserID(c), *payload.TZOffset)
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted_count":      deleted,
		"minutes_subtracted": subtracted,
	})
}
