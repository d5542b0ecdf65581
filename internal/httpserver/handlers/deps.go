package handlers

import (
	"contractdesk/internal/approval"
	"contractdesk/internal/auth"
	"contractdesk/internal/config"
	"contractdesk/internal/notify"
	"contractdesk/internal/render"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries what the handler constructors close over.
type Deps struct {
	DB        *gorm.DB
	Log       *zap.SugaredLogger
	Config    config.Config
	Issuer    *auth.Issuer
	Cache     auth.PrincipalCache
	Captcha   *auth.CaptchaVerifier
	Notify    *notify.Service
	Approvals *approval.Store
	PDF       render.PDFEngine
}
