package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/minutebank/internal/db"
	"github.com/minutebank/internal/service"
)

// ListUsers 返回全部用户及其累计时间（管理员接口）
func (a *API) ListUsers(c *gin.Context) {
	users, err := a.users.List()
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, user := range users {
		item := userToPayload(&user)
		item["time"] = service.FormatMinutes(user.TotalMinutes)
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"users": items})
}

// GetUserActions 返回指定用户的打卡历史（管理员接口）
func (a *API) GetUserActions(c *gin.Context) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	if _, err := a.users.Get(userID); err != nil {
		a.handleActionError(c, err)
		return
	}

	records, err := a.ledger.History(userID)
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": records})
}

// ResetUser 把指定用户恢复到初始状态（管理员接口，显式角色门禁）
func (a *API) ResetUser(c *gin.Context) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := a.ledger.ResetAll(userID); err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User reset"})
}

func userToPayload(user *db.User) gin.H {
	return gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"display_name":    user.DisplayName,
		"profile_picture": user.ProfilePicture,
		"is_admin":        user.IsAdmin,
	}
}
