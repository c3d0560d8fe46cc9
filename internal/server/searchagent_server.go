package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohammad-safakhou/searchagent/config"
	"github.com/mohammad-safakhou/searchagent/internal/app"
	"github.com/mohammad-safakhou/searchagent/internal/searcher"
)

type askRequest struct {
	Question string `json:"question"`
}

// Run builds the application and serves the HTTP API until the listener
// stops.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

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

	a, err := app.New(cfg, log.New(log.Writer(), "[APP] ", log.LstdFlags))
	if err != nil {
		return err
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}

	api := e.Group("/api")
	api.POST("/ask", func(c echo.Context) error {
		var req askRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Question == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "question is required")
		}
		result, err := a.Ask(c.Request().Context(), req.Question, nil)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusOK, result)
	})

	// Streaming variant: step events as server-sent events, the final result
	// as the closing event.
	api.POST("/ask/stream", func(c echo.Context) error {
		var req askRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Question == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "question is required")
		}

		resp := c.Response()
		resp.Header().Set(echo.HeaderContentType, "text/event-stream")
		resp.Header().Set("Cache-Control", "no-cache")
		resp.WriteHeader(http.StatusOK)

		emit := func(step searcher.Step) {
			_ = writeEvent(c, "step", step)
		}
		result, err := a.Ask(c.Request().Context(), req.Question, emit)
		if err != nil {
			return writeEvent(c, "error", map[string]string{"error": err.Error()})
		}
		return writeEvent(c, "result", result)
	})

	api.GET("/cache/failed", func(c echo.Context) error {
		return c.JSON(http.StatusOK, a.Cache.FailedURLs())
	})
	api.DELETE("/cache", func(c echo.Context) error {
		if err := a.Cache.Clear(); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	})

	return e.Start(cfg.Server.Address)
}

func writeEvent(c echo.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
