package api

import (
	"context"

	"MoexPull/internal/domain/models"
	xhttp "MoexPull/pkg/http"
	xlogger "MoexPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BondScreener is what the bond routes need from *usecase.BondScreener.
type BondScreener interface {
	Screen(ctx context.Context) (*models.ScreenResult, error)
}

// BondsEchoHandler serves the bond screener.
type BondsEchoHandler struct {
	logger   *xlogger.Logger
	screener BondScreener
}

func NewBondsEchoHandler(logger *xlogger.Logger, screener BondScreener) *BondsEchoHandler {
	return &BondsEchoHandler{logger: logger, screener: screener}
}

func (h *BondsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/bonds")
	g.GET("", h.Bonds)
	g.GET("/audit", h.Audit)
}

// Bonds returns eligible bonds in feed order.
func (h *BondsEchoHandler) Bonds(c echo.Context) error {
	res, err := h.screener.Screen(c.Request().Context())
	if err != nil {
		h.logger.Error("bond screen failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=60")
	return xhttp.SuccessResponse(c, res.Bonds)
}

// Audit lists skipped securities, optionally filtered by reason.
func (h *BondsEchoHandler) Audit(c echo.Context) error {
	req := &models.BondAuditRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.screener.Screen(c.Request().Context())
	if err != nil {
		h.logger.Error("bond audit failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, appError(err))
	}

	rows := res.Skipped
	if req.Reason != "" {
		rows = make([]models.SkipEntry, 0, len(res.Skipped))
		for _, s := range res.Skipped {
			if string(s.Reason) == req.Reason {
				rows = append(rows, s)
			}
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
