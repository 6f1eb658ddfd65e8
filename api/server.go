package api

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/internal/config"
	"github.com/unimak/dftrack/internal/slogging"
)

//go:embed static
var staticFS embed.FS

// requestTimeout bounds every request context; uploads included
const requestTimeout = 60 * time.Second

// Server wires the stores and services behind the HTTP routes
type Server struct {
	cfg      *config.Config
	db       *gorm.DB
	users    UserStore
	projects *GormProjectStore
	problems *GormProblemStore
	reports  *ReportService
	imports  *ImportService
	photos   *PhotoStore
	sessions *SessionManager
	metrics  *Metrics
}

// NewServer creates the server. metrics may be nil.
func NewServer(cfg *config.Config, db *gorm.DB, sessionStore SessionStore, metrics *Metrics) *Server {
	photos := NewPhotoStore(cfg.Uploads.Root)
	projects := NewGormProjectStore(db)
	return &Server{
		cfg:      cfg,
		db:       db,
		users:    NewGormUserStore(db, cfg.Auth.BcryptCost),
		projects: projects,
		problems: NewGormProblemStore(db, photos),
		reports:  NewReportService(db, photos, NewDFNumberGenerator(), metrics),
		imports:  NewImportService(db, projects, metrics),
		photos:   photos,
		sessions: NewSessionManager(sessionStore, cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure),
		metrics:  metrics,
	}
}

// Router builds the gin engine with middleware and routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(slogging.LoggerMiddleware())
	r.Use(slogging.Recoverer())
	if s.cfg.Server.SlowRequest > 0 {
		r.Use(slogging.PerformanceMiddleware(s.cfg.Server.SlowRequest))
	}
	r.Use(s.metrics.Middleware())
	r.Use(SecurityHeaders(s.cfg.Server.TLSEnabled))
	r.Use(NoCacheHeaders())
	r.Use(ContextTimeout(requestTimeout))
	r.Use(s.sessions.Middleware())

	r.NoRoute(func(c *gin.Context) {
		apology(c, http.StatusNotFound, "page not found")
	})

	r.GET("/healthz", s.healthz)
	if s.cfg.Server.MetricsEnabled && s.metrics != nil {
		r.GET("/metrics", s.metrics.Handler())
	}
	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.StaticFS("/static/app", http.FS(assets))

	r.GET("/login", s.loginForm)
	r.POST("/login", s.login)
	r.GET("/register", s.registerForm)
	r.POST("/register", s.register)
	r.GET("/logout", s.logout)

	user := r.Group("/", RequireLogin())
	user.GET("/", s.index)
	user.GET("/info", s.info)
	user.GET("/history", s.history)
	user.GET("/upload", s.uploadForm)
	user.POST("/upload", s.upload)
	user.GET("/upload/groups", s.uploadGroups)
	user.GET("/upload/components", s.uploadComponents)
	user.GET("/settings", s.settingsForm)
	user.POST("/settings", s.settings)
	user.GET(uploadsURLPrefix+"/*path", s.photo)

	admin := r.Group("/admin", RequireAdmin())
	admin.GET("", s.adminPage)
	admin.POST("", s.adminAction)
	admin.GET("/projects", s.adminProjectsPage)
	admin.POST("/projects", s.adminProjectsAction)

	return r
}

// healthz reports whether the database answers
func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		slogging.GetContextLogger(c).Error("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// flashError logs err and queues its user-facing message
func (s *Server) flashError(c *gin.Context, err error) {
	reqErr := logRequestError(c, err)
	s.sessions.Flash(c, FlashError, reqErr.Message)
}

// redirectWithError flashes err and sends the browser to location
func (s *Server) redirectWithError(c *gin.Context, location string, err error) {
	s.flashError(c, err)
	c.Redirect(http.StatusFound, location)
}
