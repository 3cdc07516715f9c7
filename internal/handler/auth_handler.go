package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/minutebank/internal/service"
)

const sessionUserKey = "user_id"

// currentUserID 从会话中读取已登录用户，未登录返回 0
func currentUserID(c *gin.Context) uint {
	session := sessions.Default(c)
	raw := session.Get(sessionUserKey)
	if raw == nil {
		return 0
	}
	if id, ok := raw.(uint); ok {
		return id
	}
	return 0
}

// AuthRequired 是 JSON API 的认证中间件，未登录统一返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUserID(c) == 0 {
			respondError(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired 校验管理员角色。
// 管理接口曾经不做归属校验，这里显式收紧为 is_admin 角色门禁。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == 0 {
			respondError(c, http.StatusUnauthorized, "Not authenticated")
			c.Abort()
			return
		}

		user, err := a.users.Get(userID)
		if err != nil || !user.IsAdmin {
			respondError(c, http.StatusForbidden, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Register 处理注册请求：multipart 表单，头像可选
func (a *API) Register(c *gin.Context) {
	input := service.RegisterInput{
		Username:    c.PostForm("username"),
		Email:       c.PostForm("email"),
		DisplayName: c.PostForm("display_name"),
		Password:    c.PostForm("password"),
	}

	user, err := a.users.Register(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUserInput):
			respondError(c, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, service.ErrUserExists):
			respondError(c, http.StatusBadRequest, "Username or email already exists")
		default:
			a.handleActionError(c, err)
		}
		return
	}

	// 头像失败不阻断注册，仅记录日志
	if file, err := c.FormFile("profile_picture"); err == nil && file != nil {
		if filename, err := a.saveProfilePicture(file); err == nil {
			if updated, err := a.users.UpdateProfile(user.ID, service.ProfileInput{ProfilePicture: filename}); err == nil {
				user = updated
			}
		} else {
			a.log.Warn().Err(err).Uint("user_id", user.ID).Msg("failed to save profile picture")
		}
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save session")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToPayload(user)})
}

// Login 处理登录请求
func (a *API) Login(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &payload, "Username and password required") {
		return
	}

	if payload.Username == "" || payload.Password == "" {
		respondError(c, http.StatusBadRequest, "Username and password required")
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		a.handleActionError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(user)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me 返回当前登录用户
func (a *API) Me(c *gin.Context) {
	user, err := a.users.Get(currentUserID(c))
	if err != nil {
		a.handleActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToPayload(user)})
}

// UpdateProfile 更新资料：邮箱/昵称/密码/头像均为可选
func (a *API) UpdateProfile(c *gin.Context) {
	userID := currentUserID(c)

	input := service.ProfileInput{
		Email:       c.PostForm("email"),
		DisplayName: c.PostForm("display_name"),
		Password:    c.PostForm("password"),
	}

	if file, err := c.FormFile("profile_picture"); err == nil && file != nil {
		filename, err := a.saveProfilePicture(file)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid profile picture")
			return
		}
		a.removeOldProfilePicture(userID)
		input.ProfilePicture = filename
	}

	user, err := a.users.UpdateProfile(userID, input)
	if err != nil {
		a.handleActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(user)})
}

// ResetSelf 把当前用户恢复到初始状态（清空打卡记录与全部动作覆盖）
func (a *API) ResetSelf(c *gin.Context) {
	if err := a.ledger.ResetAll(currentUserID(c)); err != nil {
		a.handleActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All actions and time have been reset"})
}
