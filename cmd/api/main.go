package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contractdesk/internal/approval"
	"contractdesk/internal/auth"
	"contractdesk/internal/cache"
	"contractdesk/internal/config"
	"contractdesk/internal/events"
	"contractdesk/internal/httpserver"
	"contractdesk/internal/httpserver/handlers"
	"contractdesk/internal/logger"
	"contractdesk/internal/models"
	"contractdesk/internal/notify"
	"contractdesk/internal/rbac"
	"contractdesk/internal/render"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	_ = godotenv.Load()
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.New("info").Fatalw("config load failed", "path", path, "error", err)
	}
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	ctx := context.Background()
	seedRoles(ctx, db, lg)
	seedDefaultAdmin(ctx, db, lg, cfg)
	if err := notify.SeedDefaults(ctx, db); err != nil {
		lg.Warnw("notification template seed failed", "error", err)
	}

	authn := &auth.Authenticator{
		DB:         db,
		Issuer:     auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL),
		CookieName: cfg.SessionCookie,
		Log:        lg,
	}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			lg.Warnw("redis unavailable, principal cache disabled", "error", err)
		} else {
			defer client.Close()
			authn.Cache = cache.NewPrincipalStore(client, cfg.CacheTTL)
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		if err != nil {
			lg.Fatalw("kafka publisher", "error", err)
		}
		publisher = kp
	}
	defer publisher.Close()

	d := &handlers.Deps{
		DB:        db,
		Log:       lg,
		Config:    cfg,
		Issuer:    authn.Issuer,
		Cache:     authn.Cache,
		Captcha:   auth.NewCaptchaVerifier(cfg.CaptchaSecret, cfg.CaptchaVerifyURL),
		Notify:    notify.NewService(db, publisher, lg),
		Approvals: approval.NewStore(db, cfg.ApprovalTokenTTL),
		PDF:       pdfEngine(cfg, lg),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpserver.NewRouter(d, authn),
		ReadHeaderTimeout: 10 * time.Second,
	}
	run(srv, lg)
}

func run(srv *http.Server, lg *zap.SugaredLogger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		lg.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		lg.Infow("shutdown signal received")
	case err := <-errCh:
		lg.Errorw("server failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// pdfEngine prefers Gotenberg when configured, with the built-in renderer
// as fallback.
func pdfEngine(cfg config.Config, lg *zap.SugaredLogger) render.PDFEngine {
	images := render.HTTPImageLoader(render.NewImageClient(10 * time.Second))
	builtin, err := render.NewPDFRenderer(cfg.PDFFontDir, images)
	if err != nil {
		lg.Warnw("pdf fonts unavailable, Arabic text will be omitted from PDFs", "dir", cfg.PDFFontDir, "error", err)
		builtin, _ = render.NewPDFRenderer("", images)
	}
	if cfg.GotenbergURL == "" {
		return builtin
	}
	return render.WithFallback(render.NewGotenberg(cfg.GotenbergURL), builtin, lg)
}

func seedRoles(ctx context.Context, db *gorm.DB, lg *zap.SugaredLogger) {
	for _, name := range rbac.AllRoles {
		role := models.Role{Name: name, Description: rbac.Describe(name)}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
			lg.Warnw("role seed failed", "role", name, "error", err)
		}
	}
}

func seedDefaultAdmin(ctx context.Context, db *gorm.DB, lg *zap.SugaredLogger, cfg config.Config) {
	email := strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail))
	if email == "" || cfg.SeedAdminPassword == "" {
		return
	}
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		lg.Errorw("seed admin lookup failed", "error", err)
		return
	}
	if count > 0 {
		return
	}
	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		lg.Errorw("seed admin hash failed", "error", err)
		return
	}
	now := time.Now()
	u := models.User{Email: email, Name: "Administrator", PasswordHash: hash, Role: rbac.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		lg.Errorw("seed admin failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", email)
}
