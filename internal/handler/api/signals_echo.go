package api

import (
	"context"

	"MoexPull/internal/domain/models"
	xhttp "MoexPull/pkg/http"
	xlogger "MoexPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recommender labels tickers with technical-analysis signals.
type Recommender interface {
	Recommendations(ctx context.Context, tickers []string) (map[string]string, error)
}

// SignalsEchoHandler serves ticker recommendations. It needs no user.
type SignalsEchoHandler struct {
	logger *xlogger.Logger
	rec    Recommender
}

func NewSignalsEchoHandler(logger *xlogger.Logger, rec Recommender) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, rec: rec}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/recommendations", h.Recommendations)
}

// Recommendations returns a ticker to label map. Tickers without a label are
// absent.
func (h *SignalsEchoHandler) Recommendations(c echo.Context) error {
	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out, err := h.rec.Recommendations(c.Request().Context(), req.Tickers)
	if err != nil {
		h.logger.Error("recommendations failed", xlogger.Strings("tickers", req.Tickers), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.SuccessResponse(c, out)
}
