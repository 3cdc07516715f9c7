package main

import (
	"github.com/gin-gonic/gin"
	"github.com/minutebank/internal/config"
	"github.com/minutebank/internal/db"
	"github.com/minutebank/internal/handler"
	"github.com/minutebank/internal/router"
	"github.com/minutebank/internal/service"
	"github.com/minutebank/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	// 可选的管理员引导账号
	if err := db.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure admin account")
	}

	// 加载默认动作配置，不可用时自动回退到内置种子
	defaults := service.LoadDefaultActions(cfg.ActionsConfigPath, log)
	log.Info().Str("defaults", defaults.String()).Msg("action catalog loaded")

	api := handler.NewAPI(db.DB, defaults, log, cfg.UploadDir, cfg.UploadURLPath)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		StaticDir:     cfg.StaticDir,
	})

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}
