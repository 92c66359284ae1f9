package api

import (
	"context"

	"MoexPull/internal/domain/models"
	"MoexPull/internal/usecase"
	xhttp "MoexPull/pkg/http"
	"MoexPull/pkg/http/middleware"
	xlogger "MoexPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Portfolio is what the portfolio routes need from *usecase.PortfolioService.
type Portfolio interface {
	List(ctx context.Context, userID string) ([]models.Holding, error)
	Create(ctx context.Context, userID string, req *models.CreateHoldingRequest) (*models.Holding, error)
	Update(ctx context.Context, userID string, req *models.UpdateHoldingRequest) (*models.Holding, error)
	Sell(ctx context.Context, userID string, req *models.SellHoldingRequest) (*models.Holding, error)
	Delete(ctx context.Context, userID, id string) error
	Statistics(ctx context.Context, userID string) ([]models.ClassStatistics, error)
	Dashboard(ctx context.Context, userID string, withSignals bool, opts ...usecase.EnrichOption) (*models.Dashboard, error)
}

// PortfolioEchoHandler serves holding CRUD, statistics and the dashboard.
type PortfolioEchoHandler struct {
	logger *xlogger.Logger
	svc    Portfolio
	stream *DashboardStream
}

func NewPortfolioEchoHandler(logger *xlogger.Logger, svc Portfolio, stream *DashboardStream) *PortfolioEchoHandler {
	return &PortfolioEchoHandler{logger: logger, svc: svc, stream: stream}
}

func (h *PortfolioEchoHandler) RegisterRoutes(e *echo.Echo) {
	user := e.Group("/api", middleware.RequireUser())
	user.GET("/assets", h.List)
	user.POST("/assets", h.Create)
	user.PUT("/assets/:id", h.Update)
	user.PUT("/assets/:id/sell", h.Sell)
	user.DELETE("/assets/:id", h.Delete)
	user.GET("/statistics", h.Statistics)
	user.GET("/dashboard", h.Dashboard)
	if h.stream != nil {
		user.GET("/dashboard/stream", h.stream.Serve)
	}
}

func (h *PortfolioEchoHandler) List(c echo.Context) error {
	rows, err := h.svc.List(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return h.fail(c, "list holdings", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) Create(c echo.Context) error {
	req := &models.CreateHoldingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.svc.Create(c.Request().Context(), middleware.UserID(c), req)
	if err != nil {
		return h.fail(c, "create holding", err)
	}
	return xhttp.CreatedResponse(c, out)
}

func (h *PortfolioEchoHandler) Update(c echo.Context) error {
	req := &models.UpdateHoldingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.svc.Update(c.Request().Context(), middleware.UserID(c), req)
	if err != nil {
		return h.fail(c, "update holding", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *PortfolioEchoHandler) Sell(c echo.Context) error {
	req := &models.SellHoldingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.svc.Sell(c.Request().Context(), middleware.UserID(c), req)
	if err != nil {
		return h.fail(c, "sell holding", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *PortfolioEchoHandler) Delete(c echo.Context) error {
	req := &models.HoldingIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.Delete(c.Request().Context(), middleware.UserID(c), req.ID); err != nil {
		return h.fail(c, "delete holding", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PortfolioEchoHandler) Statistics(c echo.Context) error {
	rows, err := h.svc.Statistics(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return h.fail(c, "statistics", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) Dashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, err := h.svc.Dashboard(c.Request().Context(), middleware.UserID(c), req.Signals)
	if err != nil {
		return h.fail(c, "dashboard", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, no-store")
	return xhttp.SuccessResponse(c, d)
}

func (h *PortfolioEchoHandler) fail(c echo.Context, op string, err error) error {
	mapped := appError(err)
	if mapped == err {
		h.logger.Error(op+" failed", xlogger.String("user_id", middleware.UserID(c)), xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.String("user_id", middleware.UserID(c)), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, mapped)
}
