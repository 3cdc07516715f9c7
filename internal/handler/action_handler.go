package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/minutebank/internal/service"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	warningMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	warningSanitizer = bluemonday.UGCPolicy()
)

// actionPayload 是编辑/自建动作请求的载荷，字段名沿用前端的连字符约定
type actionPayload struct {
	OriginalText           string   `json:"original_text"`
	Text                   string   `json:"text"`
	Minutes                int      `json:"minutes"`
	SimilarTo              []string `json:"similar-to"`
	IsRepeatableDaily      bool     `json:"is-repeatable-daily"`
	MustBeLoggedAtEndOfDay bool     `json:"must-be-logged-at-end-of-day"`
	Warning                string   `json:"warning"`
}

// GetButtonActions 返回当前调用方的有效动作清单。
// 匿名访问者得到默认清单，登录用户得到合并覆盖后的结果。
func (a *API) GetButtonActions(c *gin.Context) {
	actions, err := a.catalog.Resolve(currentUserID(c))
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	items := make([]gin.H, 0, len(actions))
	for _, action := range actions {
		items = append(items, effectiveActionToPayload(action))
	}

	c.JSON(http.StatusOK, gin.H{"actions": items})
}

// DeleteDefaultAction 为当前用户隐藏一个默认动作
func (a *API) DeleteDefaultAction(c *gin.Context) {
	var payload struct {
		ActionText string `json:"action_text"`
	}
	if !bindJSON(c, &payload, "action_text is required") {
		return
	}

	if err := a.catalog.DeleteDefault(currentUserID(c), payload.ActionText); err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Action deleted"})
}

// EditDefaultAction 为当前用户覆盖一个默认动作的内容
func (a *API) EditDefaultAction(c *gin.Context) {
	var payload actionPayload
	if !bindJSON(c, &payload, "Invalid action payload") {
		return
	}

	edit, err := a.catalog.EditDefault(currentUserID(c), payload.OriginalText, actionInputFromPayload(payload))
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": gin.H{
		"text":          edit.Text,
		"minutes":       edit.Minutes,
		"original_text": edit.OriginalText,
		"is_edited":     true,
	}})
}

// RestoreDefaultAction 撤销当前用户对某默认动作的删除/编辑覆盖
func (a *API) RestoreDefaultAction(c *gin.Context) {
	var payload struct {
		ActionText string `json:"action_text"`
	}
	if !bindJSON(c, &payload, "action_text is required") {
		return
	}

	if err := a.catalog.RestoreDefault(currentUserID(c), payload.ActionText); err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Action restored"})
}

// CreateCustomAction 新建自建动作
func (a *API) CreateCustomAction(c *gin.Context) {
	var payload actionPayload
	if !bindJSON(c, &payload, "Invalid action payload") {
		return
	}

	custom, err := a.catalog.CreateCustom(currentUserID(c), actionInputFromPayload(payload))
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"action": gin.H{
		"text":      custom.Text,
		"minutes":   custom.Minutes,
		"is_custom": true,
	}})
}

// EditCustomAction 更新自建动作，original_text 定位现有条目
func (a *API) EditCustomAction(c *gin.Context) {
	var payload actionPayload
	if !bindJSON(c, &payload, "Invalid action payload") {
		return
	}

	custom, err := a.catalog.EditCustom(currentUserID(c), payload.OriginalText, actionInputFromPayload(payload))
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": gin.H{
		"text":      custom.Text,
		"minutes":   custom.Minutes,
		"is_custom": true,
	}})
}

// DeleteCustomAction 按文案删除自建动作
func (a *API) DeleteCustomAction(c *gin.Context) {
	var payload struct {
		Text string `json:"text"`
	}
	if !bindJSON(c, &payload, "text is required") {
		return
	}

	if err := a.catalog.DeleteCustom(currentUserID(c), payload.Text); err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Action deleted"})
}

func actionInputFromPayload(payload actionPayload) service.ActionInput {
	return service.ActionInput{
		Text:                   payload.Text,
		Minutes:                payload.Minutes,
		SimilarTo:              payload.SimilarTo,
		IsRepeatableDaily:      payload.IsRepeatableDaily,
		MustBeLoggedAtEndOfDay: payload.MustBeLoggedAtEndOfDay,
		Warning:                payload.Warning,
	}
}

func effectiveActionToPayload(action service.EffectiveAction) gin.H {
	item := gin.H{
		"text":                         action.Text,
		"minutes":                      action.Minutes,
		"similar-to":                   action.SimilarTo,
		"is-repeatable-daily":          action.IsRepeatableDaily,
		"must-be-logged-at-end-of-day": action.MustBeLoggedAtEndOfDay,
		"is_edited":                    action.IsEdited,
		"is_custom":                    action.IsCustom,
	}

	if action.OriginalText != "" {
		item["original_text"] = action.OriginalText
	}
	if warning := strings.TrimSpace(action.Warning); warning != "" {
		item["warning"] = warning
		item["warning_html"] = renderWarningHTML(warning)
	}

	return item
}

// renderWarningHTML 把动作警告文案按 Markdown 渲染并消毒，供前端富文本展示
func renderWarningHTML(warning string) string {
	var buf bytes.Buffer
	if err := warningMarkdown.Convert([]byte(warning), &buf); err != nil {
		return ""
	}
	return warningSanitizer.Sanitize(buf.String())
}
