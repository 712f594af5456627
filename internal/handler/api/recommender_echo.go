package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"SPI/internal/domain/models"
	domrepo "SPI/internal/domain/repository"
	"SPI/internal/service/export"
	"SPI/internal/service/stream"
	"SPI/internal/usecase"
	xhttp "SPI/pkg/http"
	xlogger "SPI/pkg/logger"
)

// RecommenderEchoHandler serves the pricing endpoints.
type RecommenderEchoHandler struct {
	logger    *xlogger.Logger
	uc        *usecase.Recommender
	store     domrepo.RecommendationStore
	hub       *stream.Hub
	jwtSecret string
}

func NewRecommenderEchoHandler(
	logger *xlogger.Logger,
	uc *usecase.Recommender,
	store domrepo.RecommendationStore,
	hub *stream.Hub,
	jwtSecret string,
) *RecommenderEchoHandler {
	return &RecommenderEchoHandler{logger: logger, uc: uc, store: store, hub: hub, jwtSecret: jwtSecret}
}

func (h *RecommenderEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/predict", h.Predict)
	e.GET("/health", h.Health)
	if h.hub != nil {
		e.GET("/ws/recommendations", h.hub.ServeWS)
	}

	g := e.Group("/api/recommendations/:sku")
	g.GET("", h.Latest)
	g.GET("/history", h.History)
	g.GET("/export", h.Export)

	var mw []echo.MiddlewareFunc
	if h.jwtSecret != "" {
		mw = append(mw, echojwt.WithConfig(echojwt.Config{
			SigningKey: []byte(h.jwtSecret),
			ErrorHandler: func(c echo.Context, err error) error {
				return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("missing or invalid token").WithError(err))
			},
		}))
	}
	g.POST("/decision", h.Decide, mw...)
}

// Predict answers with the bare prediction object rather than the envelope.
func (h *RecommenderEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.uc.Predict(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RecommenderEchoHandler) Latest(c echo.Context) error {
	sku := c.Param("sku")
	rec, err := h.uc.Latest(c.Request().Context(), sku)
	if err != nil {
		return h.domainError(c, "latest", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *RecommenderEchoHandler) Decide(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	d, err := h.uc.Decide(c.Request().Context(), req.SKU, req.Action)
	if err != nil {
		return h.domainError(c, "decide", err)
	}

	if tok, ok := c.Get("user").(*jwt.Token); ok {
		sub, _ := tok.Claims.GetSubject()
		h.logger.Info("decision by", xlogger.String("sku", req.SKU), xlogger.String("subject", sub))
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *RecommenderEchoHandler) History(c echo.Context) error {
	recs, err := h.history(c)
	if err != nil {
		return h.domainError(c, "history", err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *RecommenderEchoHandler) Export(c echo.Context) error {
	recs, err := h.history(c)
	if err != nil {
		return h.domainError(c, "export", err)
	}

	sku := c.Param("sku")
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, export.ContentType)
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename(sku, time.Now())+`"`)
	res.WriteHeader(http.StatusOK)
	if err := export.WriteXLSX(res, recs); err != nil {
		// headers are gone; all that is left is to log
		h.logger.Error("export write error", xlogger.String("sku", sku), xlogger.Error(err))
	}
	return nil
}

func (h *RecommenderEchoHandler) history(c echo.Context) ([]*models.Recommendation, error) {
	tr, err := xhttp.ParseTimeRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return nil, err
	}
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), usecase.DefaultHistoryLimit)
	return h.uc.History(c.Request().Context(), c.Param("sku"), tr.From, tr.To, limit)
}

// Health reports the history store as a dependency without failing the probe.
func (h *RecommenderEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{"history": "ok"}
	if h.store != nil {
		if err := h.store.Health(ctx); err != nil {
			deps["history"] = err.Error()
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"model_version": models.ModelVersion,
		"dependencies":  deps,
	})
}

func (h *RecommenderEchoHandler) domainError(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return xhttp.AppErrorResponse(c, appErr)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrAlreadyDecided), errors.Is(err, models.ErrBusy):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	case errors.Is(err, models.ErrHistoryUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(err.Error()))
	}
	h.logger.Error(op+" usecase error", xlogger.String("sku", c.Param("sku")), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}
