// Package server exposes the store's command set over HTTP. It is a
// thin facade: all semantics live in the store and document layers.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"jsonkv/internal/jsonpath"
	"jsonkv/internal/jsonvalue"
	"jsonkv/internal/ratelimit"
	"jsonkv/internal/store"
)

const requestIDHeader = "X-Request-Id"

type Server struct {
	store   *store.Store
	echo    *echo.Echo
	log     zerolog.Logger
	limiter *ratelimit.Limiter
}

// New wires the routes and middleware. requestsPerSecond of 0 leaves
// the server unthrottled.
func New(st *store.Store, log zerolog.Logger, requestsPerSecond float64) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		store:   st,
		echo:    e,
		log:     log,
		limiter: ratelimit.New(requestsPerSecond),
	}

	e.Use(s.requestID)
	e.Use(s.throttle)
	e.Use(s.logRequests)

	e.GET("/keys", s.handleKeys)
	e.POST("/mget", s.handleMGet)
	e.PUT("/keys/:key", s.handleSet)
	e.GET("/keys/:key", s.handleGet)
	e.DELETE("/keys/:key", s.handleDel)

	e.GET("/keys/:key/type", s.handleType)
	e.GET("/keys/:key/strlen", s.handleStrLen)
	e.GET("/keys/:key/arrlen", s.handleArrLen)
	e.GET("/keys/:key/objlen", s.handleObjLen)
	e.GET("/keys/:key/objkeys", s.handleObjKeys)

	e.POST("/keys/:key/numincrby", s.handleNumIncrBy)
	e.POST("/keys/:key/nummultby", s.handleNumMultBy)
	e.POST("/keys/:key/numpowby", s.handleNumPowBy)
	e.POST("/keys/:key/toggle", s.handleToggle)
	e.POST("/keys/:key/strappend", s.handleStrAppend)
	e.POST("/keys/:key/arrappend", s.handleArrAppend)
	e.POST("/keys/:key/arrinsert", s.handleArrInsert)
	e.POST("/keys/:key/arrpop", s.handleArrPop)
	e.POST("/keys/:key/arrtrim", s.handleArrTrim)
	e.POST("/keys/:key/arrindex", s.handleArrIndex)
	e.POST("/keys/:key/clear", s.handleClear)

	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(requestIDHeader, id)
		c.Set("request_id", id)
		return next(c)
	}
}

func (s *Server) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Allow() {
			return c.JSON(http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}
		return next(c)
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)

		id, _ := c.Get("request_id").(string)
		s.log.Info().
			Str("request_id", id).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Msg("request")
		return err
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// fail maps store and path errors onto HTTP statuses.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	var httpErr *echo.HTTPError
	var parseErr *jsonvalue.ParseError
	switch {
	case errors.As(err, &httpErr):
		// binding errors already carry their status
		status = httpErr.Code
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrWrongType):
		status = http.StatusConflict
	case errors.Is(err, store.ErrPathMiss),
		errors.Is(err, jsonpath.ErrSyntax),
		errors.Is(err, jsonpath.ErrNotSupported),
		errors.As(err, &parseErr):
		status = http.StatusBadRequest
	}

	return c.JSON(status, errorBody{Error: err.Error()})
}

func pathParam(c echo.Context) string {
	if p := c.QueryParam("path"); p != "" {
		return p
	}
	return "$"
}
