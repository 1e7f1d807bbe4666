package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/progress"
	"github.com/trezcool/darasa/core/user"
)

type (
	ServerDeps struct {
		Conf         *core.Config
		Logger       core.Logger
		DB           core.DB
		UserSvc      user.ServiceInterface
		CourseSvc    course.ServiceInterface
		ProgressSvc  progress.ServiceInterface
		DashboardSvc dashboard.ServiceInterface
		Validate     *validator.Validate
		Translator   ut.Translator
	}

	Server struct {
		deps      ServerDeps
		app       *echo.Echo
		jwtConfig middleware.JWTConfig
		errs      chan error
		shutdown  chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.jwtConfig = middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/api/v1")
	v1.GET("/health", s.health)

	jwt := middleware.JWTWithConfig(s.jwtConfig)

	// optionalJWT resolves a Principal when a token is presented and lets
	// anonymous callers through; public course listing relies on it.
	optConfig := s.jwtConfig
	optConfig.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	optionalJWT := middleware.JWTWithConfig(optConfig)

	registerUserAPI(v1, jwt, s.deps)
	registerCourseAPI(v1, jwt, optionalJWT, s.deps)
	registerProgressAPI(v1, jwt, s.deps)
	registerStudentAPI(v1, jwt, s.deps)
}

// Start runs the listener; it blocks until the server stops and reports any
// listen failure on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errs
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown requests a graceful shutdown; used when an integrity issue
// is detected at runtime.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Environment string `json:"environment"`
}

func (s *Server) health(ctx echo.Context) error {
	res := healthResponse{
		Status:      "ok",
		Database:    "ok",
		Environment: s.deps.Conf.Env,
	}
	if s.deps.DB != nil {
		c, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
		defer cancel()

		var ok bool
		if err := s.deps.DB.QueryRowContext(c, "SELECT true").Scan(&ok); err != nil {
			res.Status = "degraded"
			res.Database = "unavailable"
			return ctx.JSON(http.StatusServiceUnavailable, res)
		}
	}
	return ctx.JSON(http.StatusOK, res)
}
