package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/screwyforcepush/daily-shit-list/domain"
	"github.com/screwyforcepush/daily-shit-list/gateway"
)

// commandMaxSize bounds a command body. Import payloads are the big ones.
const commandMaxSize = 1 << 20 // 1 MiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, gw *gateway.Gateway, auth *Auth, broker *Broker, logger *log.Logger) {
	e.POST("/api/commands", postCommand(gw, auth, broker, logger))
	e.OPTIONS("/api/commands", commandOptions)
	e.GET("/api/tasks", getTasks(gw))
	e.GET("/api/stream", streamView(gw, broker))
	e.GET("/healthz", healthz)
}

// errorResponse is the failure envelope. Matches carries the candidate list
// of an ambiguous title query; Suggestion names the closest op for a typo.
type errorResponse struct {
	Error      string             `json:"error"`
	Matches    []domain.Candidate `json:"matches,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`
}

func postCommand(gw *gateway.Gateway, auth *Auth, broker *Broker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newCommandMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		source, authErr := auth.SourceFromRequest(c)
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		metrics.SetSource(source)

		parseStart := time.Now()
		body, readErr := io.ReadAll(io.LimitReader(c.Request().Body, commandMaxSize))
		if readErr != nil {
			metrics.SetErrorStage("read_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "unable to read request body"})
			return err
		}
		cmd, parseErr := domain.ParseCommand(body)
		metrics.ObserveParse(time.Since(parseStart))
		if parseErr != nil {
			metrics.SetErrorStage("parse")
			err = writeCommandError(c, parseErr)
			return err
		}
		metrics.SetOp(cmd.Op())

		applyStart := time.Now()
		resp, applyErr := gw.Apply(ctx, source, cmd)
		metrics.ObserveApply(time.Since(applyStart))
		if applyErr != nil {
			metrics.SetErrorStage("apply")
			err = writeCommandError(c, applyErr)
			return err
		}

		if cmd.Mutating() && broker != nil {
			broker.Notify()
		}
		err = c.JSON(http.StatusOK, resp)
		return err
	}
}

func writeCommandError(c echo.Context, cmdErr error) error {
	resp := errorResponse{Error: cmdErr.Error()}
	var amb domain.AmbiguousError
	var unknown domain.UnknownOpError
	switch {
	case errors.As(cmdErr, &amb):
		resp.Matches = amb.Candidates
	case errors.As(cmdErr, &unknown):
		resp.Suggestion = unknown.Suggestion
	}
	if isClientError(cmdErr) {
		return c.JSON(http.StatusBadRequest, resp)
	}
	c.Logger().Error(cmdErr)
	return c.JSON(http.StatusInternalServerError, resp)
}

// isClientError separates the command error taxonomy from backend failures.
func isClientError(err error) bool {
	var (
		notFound  domain.NotFoundError
		ambiguous domain.AmbiguousError
		argument  domain.ArgumentError
		status    domain.StatusError
		unknownOp domain.UnknownOpError
		schema    domain.SchemaError
	)
	return errors.As(err, &notFound) ||
		errors.As(err, &ambiguous) ||
		errors.As(err, &argument) ||
		errors.As(err, &status) ||
		errors.As(err, &unknownOp) ||
		errors.As(err, &schema)
}

func getTasks(gw *gateway.Gateway) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := gw.View(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, view)
	}
}

// commandOptions answers CORS preflights and lets callers discover the
// operation vocabulary without issuing a command.
func commandOptions(c echo.Context) error {
	c.Response().Header().Set("Allow", "OPTIONS, POST")
	return c.JSON(http.StatusOK, map[string][]string{"ops": domain.OpNames()})
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
