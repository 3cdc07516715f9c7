package handler

import (
	"github.com/minutebank/internal/service"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// API 聚合各 HTTP handler 共享的依赖
type API struct {
	users     *service.UserService
	catalog   *service.CatalogService
	ledger    *service.LedgerService
	log       zerolog.Logger
	uploadDir string
	uploadURL string
}

// NewAPI 装配服务层并构造 handler 集合
func NewAPI(db *gorm.DB, defaults *service.DefaultActionSource, log zerolog.Logger, uploadDir, uploadURL string) *API {
	catalog := service.NewCatalogService(db, defaults)

	return &API{
		users:     service.NewUserService(db),
		catalog:   catalog,
		ledger:    service.NewLedgerService(db, catalog, log),
		log:       log,
		uploadDir: uploadDir,
		uploadURL: uploadURL,
	}
}
