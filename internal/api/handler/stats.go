package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type StatsHandler struct {
	service StatsServiceInterface
}

func NewStatsHandler(s StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: s}
}

// Overview godoc
// @Summary 予約統計（管理者）
// @Description 件数・売上と予約数の多い上位10イベント
// @Tags admin
// @Produce json
// @Success 200 {object} booking.Stats
// @Router /admin/stats [get]
func (h *StatsHandler) Overview(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Overview(c.Request().Context(), actor)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
