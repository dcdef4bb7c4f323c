package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

type EventHandler struct {
	eventService   EventServiceInterface
	bookingService BookingServiceInterface
}

func NewEventHandler(eventService EventServiceInterface, bookingService BookingServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService, bookingService: bookingService}
}

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required,max=200" example:"Go Conference 2025"`
	Description string `json:"description" validate:"max=5000" example:"年次カンファレンス"`
	Location    string `json:"location" validate:"required,max=200" example:"東京"`
	Organizer   string `json:"organizer" validate:"required,max=200" example:"Go Community"`
	ImageURL    string `json:"image_url" validate:"omitempty,url" example:"https://example.com/banner.png"`
	Category    string `json:"category" validate:"omitempty,oneof=conference workshop concert sports exhibition other" example:"conference"`
	StartsAt    string `json:"starts_at" validate:"required" example:"2025-12-31T18:00:00+09:00"`
	TotalSeats  int    `json:"total_seats" validate:"required,gt=0" example:"500"`
	Price       int64  `json:"price" validate:"gte=0,lte=1000000000000" example:"3000"`
}

// UpdateEventRequest は記述的属性の部分更新。座席数は含まない
type UpdateEventRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Location    *string `json:"location" validate:"omitempty,min=1,max=200"`
	Organizer   *string `json:"organizer" validate:"omitempty,min=1,max=200"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Category    *string `json:"category" validate:"omitempty,oneof=conference workshop concert sports exhibition other"`
	StartsAt    *string `json:"starts_at"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0,lte=1000000000000"`
}

type ChangeCapacityRequest struct {
	TotalSeats int `json:"total_seats" validate:"required,gt=0" example:"800"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type EventResponse struct {
	ID             string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	Organizer      string `json:"organizer"`
	ImageURL       string `json:"image_url,omitempty"`
	Category       string `json:"category"`
	StartsAt       string `json:"starts_at"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
	Price          int64  `json:"price"`
	IsActive       bool   `json:"is_active"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type EventListResponse struct {
	Events      []*EventResponse `json:"events"`
	Total       int              `json:"total"`
	TotalPages  int              `json:"total_pages"`
	CurrentPage int              `json:"current_page"`
}

type AvailabilityResponse struct {
	EventID        string `json:"event_id"`
	AvailableSeats int    `json:"available_seats"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		Organizer:      e.Organizer,
		ImageURL:       e.ImageURL,
		Category:       string(e.Category),
		StartsAt:       e.StartsAt.Format(time.RFC3339),
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		Price:          e.Price,
		IsActive:       e.IsActive,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

func parseTime(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, field+" は RFC3339 形式で指定してください")
	}
	return t, nil
}

// Create godoc
// @Summary イベントを作成（管理者）
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /admin/events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	startsAt, err := parseTime("starts_at", req.StartsAt)
	if err != nil {
		return err
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Organizer:   req.Organizer,
		ImageURL:    req.ImageURL,
		Category:    event.Category(req.Category),
		StartsAt:    startsAt,
		TotalSeats:  req.TotalSeats,
		Price:       req.Price,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	e, err := h.eventService.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary 公開中のイベント一覧
// @Tags events
// @Produce json
// @Param category query string false "カテゴリ"
// @Param page query int false "ページ" default(1)
// @Param limit query int false "取得件数" default(20)
// @Success 200 {object} EventListResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	return h.list(c, false)
}

// ListAll は非公開を含む全イベントを返す（管理者）
func (h *EventHandler) ListAll(c echo.Context) error {
	return h.list(c, true)
}

func (h *EventHandler) list(c echo.Context, includeInactive bool) error {
	page, err := queryInt(c, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}

	result, err := h.eventService.ListEvents(c.Request().Context(), application.ListEventsInput{
		Category:        event.Category(c.QueryParam("category")),
		IncludeInactive: includeInactive,
		Page:            page,
		Limit:           limit,
	})
	if err != nil {
		return toHTTPError(err)
	}

	events := make([]*EventResponse, len(result.Events))
	for i, e := range result.Events {
		events[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, EventListResponse{
		Events:      events,
		Total:       result.Total,
		TotalPages:  result.TotalPages,
		CurrentPage: result.CurrentPage,
	})
}

// Update godoc
// @Summary イベントの記述的属性を更新（管理者）
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body UpdateEventRequest true "更新内容"
// @Success 200 {object} EventResponse
// @Router /admin/events/{id} [patch]
func (h *EventHandler) Update(c echo.Context) error {
	var req UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	input := application.UpdateEventInput{
		ID:          c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Organizer:   req.Organizer,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
	}
	if req.Category != nil {
		category := event.Category(*req.Category)
		input.Category = &category
	}
	if req.StartsAt != nil {
		startsAt, err := parseTime("starts_at", *req.StartsAt)
		if err != nil {
			return err
		}
		input.StartsAt = &startsAt
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), input)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// ChangeCapacity godoc
// @Summary 総座席数を変更（管理者）
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body ChangeCapacityRequest true "新しい総座席数"
// @Success 200 {object} EventResponse
// @Failure 409 {object} api.ErrorResponse "予約済み座席数を下回る"
// @Router /admin/events/{id}/capacity [put]
func (h *EventHandler) ChangeCapacity(c echo.Context) error {
	var req ChangeCapacityRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	e, err := h.eventService.ChangeCapacity(c.Request().Context(), c.Param("id"), req.TotalSeats)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// SetActive は公開・非公開を切り替える（管理者）
func (h *EventHandler) SetActive(c echo.Context) error {
	var req SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	e, err := h.eventService.SetActive(c.Request().Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除（管理者）
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /admin/events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	if err := h.eventService.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Categories はイベントが存在するカテゴリの一覧
func (h *EventHandler) Categories(c echo.Context) error {
	categories, err := h.eventService.Categories(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = string(cat)
	}
	return c.JSON(http.StatusOK, map[string][]string{"categories": names})
}

// Availability godoc
// @Summary 表示用の空席数
// @Description キャッシュ経由のため直近の予約が反映されていないことがある
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} AvailabilityResponse
// @Router /events/{id}/availability [get]
func (h *EventHandler) Availability(c echo.Context) error {
	id := c.Param("id")
	n, err := h.bookingService.Availability(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{EventID: id, AvailableSeats: n})
}
