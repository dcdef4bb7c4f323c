package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/seatlock"
)

// toHTTPError はドメインエラーをHTTPステータスに対応付ける
// 対応のないエラーは500にし、詳細はエラーハンドラーのログに回す
func toHTTPError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())

	case errors.Is(err, booking.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())

	case errors.Is(err, booking.ErrUserIDRequired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())

	case errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, booking.ErrNotCancellable),
		errors.Is(err, event.ErrCapacityBelowBooked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())

	case errors.Is(err, event.ErrInsufficientInventory),
		errors.Is(err, event.ErrInvalidQuantity),
		errors.Is(err, event.ErrTitleRequired),
		errors.Is(err, event.ErrInvalidTotalSeats),
		errors.Is(err, event.ErrInvalidAvailableSeats),
		errors.Is(err, event.ErrInvalidPrice),
		errors.Is(err, event.ErrAmountOverflow),
		errors.Is(err, event.ErrInvalidCategory),
		errors.Is(err, booking.ErrContactNameRequired),
		errors.Is(err, booking.ErrContactEmailRequired),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, booking.ErrEventIDRequired),
		errors.Is(err, seatlock.ErrUnknownIntent),
		errors.Is(err, seatlock.ErrEventIDRequired),
		errors.Is(err, seatlock.ErrSeatTokenRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

// requireActor は認証済みの申込者を返す
func requireActor(c echo.Context) (booking.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok || actor.UserID == "" {
		return booking.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	return actor, nil
}

// queryInt は数値のクエリパラメータを読む。空なら0
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" は整数で指定してください")
	}
	return n, nil
}
