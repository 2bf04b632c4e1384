package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RunAPI serves the admin command surface: group policy mutation and status,
// protected by the admin bearer token.
func (s *Server) RunAPI(listen, adminToken string) error {
	return s.buildAPI(adminToken).Start(listen)
}

func (s *Server) buildAPI(adminToken string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status} latency=${latency_human}\n",
	}))

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		if httpErr, ok := err.(*echo.HTTPError); ok {
			ctx.JSON(httpErr.Code, map[string]any{"error": httpErr.Message})
			return
		}
		s.logger.Warn("admin API handler error", "path", ctx.Path(), "err", err)
		ctx.JSON(code, map[string]any{"error": err.Error()})
	}

	e.GET("/_health", s.handleHealthCheck)

	grp := e.Group("/admin", s.checkAdminAuth(adminToken))
	grp.POST("/groups/:group/enable", s.handleEnableGroup)
	grp.POST("/groups/:group/disable", s.handleDisableGroup)
	grp.POST("/groups/:group/threshold", s.handleSetThreshold)
	grp.POST("/groups/:group/allow", s.handleListChange(func(group, user string, c echo.Context) error {
		return s.admin.AllowUser(c.Request().Context(), group, user)
	}))
	grp.POST("/groups/:group/unallow", s.handleListChange(func(group, user string, c echo.Context) error {
		return s.admin.UnallowUser(c.Request().Context(), group, user)
	}))
	grp.POST("/groups/:group/block", s.handleListChange(func(group, user string, c echo.Context) error {
		return s.admin.BlockUser(c.Request().Context(), group, user)
	}))
	grp.POST("/groups/:group/unblock", s.handleListChange(func(group, user string, c echo.Context) error {
		return s.admin.UnblockUser(c.Request().Context(), group, user)
	}))
	grp.POST("/groups/:group/liftBan", s.handleListChange(func(group, user string, c echo.Context) error {
		return s.admin.LiftBan(c.Request().Context(), group, user)
	}))
	grp.GET("/groups/:group/status", s.handleGroupStatus)
	grp.GET("/groups/:group/audit", s.handleListAudit)

	return e
}

func (s *Server) checkAdminAuth(adminToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if adminToken == "" {
				return echo.ErrForbidden
			}
			authheader := c.Request().Header.Get("Authorization")
			pref := "Bearer "
			if !strings.HasPrefix(authheader, pref) {
				return echo.ErrForbidden
			}
			if authheader[len(pref):] != adminToken {
				return echo.ErrForbidden
			}
			return next(c)
		}
	}
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "ok"})
}

func (s *Server) handleEnableGroup(c echo.Context) error {
	if err := s.admin.EnableGroup(c.Request().Context(), c.Param("group")); err != nil {
		return err
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

func (s *Server) handleDisableGroup(c echo.Context) error {
	if err := s.admin.DisableGroup(c.Request().Context(), c.Param("group")); err != nil {
		return err
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

type thresholdBody struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func (s *Server) handleSetThreshold(c echo.Context) error {
	var body thresholdBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(400, "invalid request body")
	}
	if err := s.admin.SetThreshold(c.Request().Context(), c.Param("group"), body.Name, body.Value); err != nil {
		return echo.NewHTTPError(400, err.Error())
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

type listChangeBody struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleListChange(apply func(group, user string, c echo.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body listChangeBody
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(400, "invalid request body")
		}
		if body.UserID == "" {
			return echo.NewHTTPError(400, "user_id is required")
		}
		if err := apply(c.Param("group"), body.UserID, c); err != nil {
			return echo.NewHTTPError(400, err.Error())
		}
		return c.JSON(200, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleGroupStatus(c echo.Context) error {
	status, err := s.admin.GroupStatus(c.Request().Context(), c.Param("group"))
	if err != nil {
		return err
	}
	return c.JSON(200, status)
}

func (s *Server) handleListAudit(c echo.Context) error {
	since := time.Time{}
	if raw := c.QueryParam("since"); raw != "" {
		var err error
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(400, "invalid 'since' timestamp, want RFC3339")
		}
	}
	recs, err := s.admin.Store.ListAudit(c.Request().Context(), c.Param("group"), since)
	if err != nil {
		return err
	}
	return c.JSON(200, map[string]any{"records": recs})
}
