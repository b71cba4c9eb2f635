package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/kokkai-archive/kokkaid/config"
	"github.com/kokkai-archive/kokkaid/internal/store"
	"github.com/kokkai-archive/kokkaid/models"
)

func Run(configPath, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	cfg := appconfig.LoadConfig(configPath)
	_ = Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}
	svc := NewService(cfg, st)

	if err := cfg.Storage.Redis.Validate(); err != nil {
		return err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
	}

	api := e.Group("/api")
	h := &Handler{Svc: svc}
	h.Register(api)

	sched := &Scheduler{Svc: svc, Rdb: rdb, Stop: make(chan struct{})}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr == "" {
		addr = ":10011"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// Handler serves the read API over stored links plus the manual run trigger.
type Handler struct {
	Svc *Service
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/sessions", h.listSessions)
	g.GET("/links", h.listLinks)
	g.GET("/unmatched", h.listUnmatched)
	g.POST("/link-runs", h.triggerLinkRun)
}

func (h *Handler) listSessions(c echo.Context) error {
	sessions, err := h.Svc.Store.ListSessions(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) listLinks(c echo.Context) error {
	from, err := parseDateParam(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
	}
	until, err := parseDateParam(c.QueryParam("until"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid until date, want YYYY-MM-DD")
	}
	activeOnly := c.QueryParam("active") != "false"
	links, err := h.Svc.Store.ListLinks(c.Request().Context(), from, until, activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if links == nil {
		links = []models.Link{}
	}
	return c.JSON(http.StatusOK, links)
}

func (h *Handler) listUnmatched(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}
	entries, err := h.Svc.Store.ListUnmatched(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []models.Unmatched{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) triggerLinkRun(c echo.Context) error {
	var body struct {
		From  string `json:"from"`
		Until string `json:"until"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := parseDateParam(body.From)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
	}
	until, err := parseDateParam(body.Until)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid until date, want YYYY-MM-DD")
	}
	report, err := h.Svc.LinkRun(c.Request().Context(), from, until)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func parseDateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", v)
}
