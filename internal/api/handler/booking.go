package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

// HeaderIdempotencyKey は二重送信防止用のリクエストヘッダー
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type CreateBookingRequest struct {
	EventID  string `json:"event_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=100" example:"2"`
	Name     string `json:"name" validate:"required,min=2,max=100" example:"山田太郎"`
	Email    string `json:"email" validate:"required,email" example:"taro@example.com"`
	Mobile   string `json:"mobile" validate:"omitempty,max=20" example:"09012345678"`
}

type BookingResponse struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Mobile      string     `json:"mobile,omitempty"`
	Quantity    int        `json:"quantity"`
	TotalAmount int64      `json:"total_amount"`
	Status      string     `json:"status"`
	QRCode      string     `json:"qr_code,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Event *BookingEventResponse `json:"event,omitempty"`
}

// BookingEventResponse は予約に添えるイベントの概要
type BookingEventResponse struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`
}

type BookingListResponse struct {
	Bookings    []BookingResponse `json:"bookings"`
	Total       int               `json:"total"`
	TotalPages  int               `json:"total_pages"`
	CurrentPage int               `json:"current_page"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	res := BookingResponse{
		ID: b.ID, EventID: b.EventID, UserID: b.UserID,
		Name: b.Contact.Name, Email: b.Contact.Email, Mobile: b.Contact.Mobile,
		Quantity: b.Quantity, TotalAmount: b.TotalAmount, Status: string(b.Status),
		QRCode: b.QRCode, CreatedAt: b.CreatedAt, CancelledAt: b.CancelledAt,
	}
	if e := b.Event; e != nil {
		res.Event = &BookingEventResponse{ID: e.ID, Title: e.Title, Location: e.Location, StartsAt: e.StartsAt}
	}
	return res
}

func toBookingResponses(bookings []*booking.Booking) []BookingResponse {
	res := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		res[i] = toBookingResponse(b)
	}
	return res
}

// Create godoc
// @Summary 予約を作成
// @Description 空席を確保して確定済みの予約を作成します
// @Tags bookings
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer トークン"
// @Param Idempotency-Key header string false "二重送信防止キー"
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse "空席不足・入力エラー"
// @Failure 404 {object} api.ErrorResponse "イベントが存在しない"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key が長すぎます")
	}

	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		EventID:        req.EventID,
		Actor:          actor,
		Quantity:       req.Quantity,
		Contact:        booking.Contact{Name: req.Name, Email: req.Email, Mobile: req.Mobile},
		IdempotencyKey: key,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 本人または管理者のみ。座席は在庫に戻ります
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセル済み"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	b, err := h.service.CancelBooking(c.Request().Context(), application.CancelBookingInput{
		BookingID: c.Param("id"),
		Actor:     actor,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Mine godoc
// @Summary 自分の予約一覧
// @Tags bookings
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Router /bookings/mine [get]
func (h *BookingHandler) Mine(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	bookings, err := h.service.ListMyBookings(c.Request().Context(), actor, limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponses(bookings))
}

// List godoc
// @Summary 予約一覧（管理者）
// @Tags admin
// @Produce json
// @Param status query string false "confirmed / cancelled / pending / all"
// @Param event_id query string false "イベントID"
// @Param page query int false "ページ" default(1)
// @Param limit query int false "取得件数" default(20)
// @Success 200 {object} BookingListResponse
// @Router /admin/bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	result, err := h.service.ListBookings(c.Request().Context(), application.ListBookingsInput{
		Actor:   actor,
		Status:  c.QueryParam("status"),
		EventID: c.QueryParam("event_id"),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, BookingListResponse{
		Bookings:    toBookingResponses(result.Bookings),
		Total:       result.Total,
		TotalPages:  result.TotalPages,
		CurrentPage: result.CurrentPage,
	})
}
