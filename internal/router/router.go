package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/minutebank/internal/handler"
)

// Options 控制路由装配的可变部分
type Options struct {
	SessionSecret string
	StaticDir     string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	secret := opts.SessionSecret
	if secret == "" {
		secret = "minutebank-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("minutebank_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 头像访问无需登录
	r.GET("/api/uploads/:filename", api.ServeUpload)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)

		me := auth.Group("")
		me.Use(handler.AuthRequired())
		{
			me.GET("/me", api.Me)
			me.PUT("/profile", api.UpdateProfile)
			me.POST("/reset", api.ResetSelf)
		}
	}

	// 动作清单对匿名访问者返回默认集合
	r.GET("/api/button-actions", api.GetButtonActions)

	authed := r.Group("/api")
	authed.Use(handler.AuthRequired())
	{
		authed.GET("/time", api.GetTime)
		authed.POST("/time/add", api.AddTime)
		authed.GET("/time/today", api.GetTodayTime)
		authed.GET("/time/today/actions", api.GetTodayActions)
		authed.POST("/time/today/reset", api.ResetToday)

		authed.POST("/actions/delete", api.DeleteDefaultAction)
		authed.POST("/actions/edit", api.EditDefaultAction)
		authed.POST("/actions/restore", api.RestoreDefaultAction)

		authed.POST("/custom-actions/add", api.CreateCustomAction)
		authed.POST("/custom-actions/edit", api.EditCustomAction)
		authed.POST("/custom-actions/delete", api.DeleteCustomAction)
	}

	// 管理接口收紧为显式管理员门禁
	admin := r.Group("/api/users")
	admin.Use(api.AdminRequired())
	{
		admin.GET("", api.ListUsers)
		admin.GET("/:id/actions", api.GetUserActions)
		admin.POST("/:id/reset", api.ResetUser)
	}

	registerSPA(r, opts.StaticDir)

	return r
}

// registerSPA 提供前端静态资源，非 API 路径回退到 index.html
func registerSPA(r *gin.Engine, staticDir string) {
	staticDir = strings.TrimSpace(staticDir)
	if staticDir == "" {
		return
	}

	if assets := filepath.Join(staticDir, "assets"); dirExists(assets) {
		r.Static("/assets", assets)
	}

	index := filepath.Join(staticDir, "index.html")

	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}

		if path != "/" {
			candidate := filepath.Join(staticDir, filepath.Clean(path))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				c.File(candidate)
				return
			}
		}

		if _, err := os.Stat(index); err == nil {
			c.File(index)
			return
		}

		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
