package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

func sampleBooking() *booking.Booking {
	return &booking.Booking{
		ID:          "booking-1",
		EventID:     "event-123",
		UserID:      testUser.UserID,
		Contact:     booking.Contact{Name: "山田太郎", Email: "taro@example.com"},
		Quantity:    2,
		TotalAmount: 5000,
		Status:      booking.StatusConfirmed,
		QRCode:      "data:image/png;base64,AAAA",
		CreatedAt:   time.Now(),
	}
}

const validBookingBody = `{"event_id":"event-123","quantity":2,"name":"山田太郎","email":"taro@example.com","mobile":"09012345678"}`

func TestBookingHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に予約を作成できる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, application.CreateBookingInput{
			EventID:        "event-123",
			Actor:          testUser,
			Quantity:       2,
			Contact:        booking.Contact{Name: "山田太郎", Email: "taro@example.com", Mobile: "09012345678"},
			IdempotencyKey: "order-001",
		}).Return(sampleBooking(), nil)
		handler := NewBookingHandler(mockService)

		c, rec := newContext(e, http.MethodPost, "/bookings", strings.NewReader(validBookingBody))
		c.Request().Header.Set(HeaderIdempotencyKey, "order-001")
		withActor(c, testUser)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "booking-1", resp.ID)
		assert.Equal(t, "confirmed", resp.Status)
		assert.Equal(t, int64(5000), resp.TotalAmount)
		assert.NotEmpty(t, resp.QRCode)
		mockService.AssertExpectations(t)
	})

	serviceErrors := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"空席不足は400", event.ErrInsufficientInventory, http.StatusBadRequest},
		{"イベントなしは404", event.ErrEventNotFound, http.StatusNotFound},
		{"他人の冪等性キーは403", booking.ErrForbidden, http.StatusForbidden},
		{"照合が必要なら500", fmt.Errorf("%w: timeout", booking.ErrCompensationRequired), http.StatusInternalServerError},
	}
	for _, tt := range serviceErrors {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBookingService)
			mockService.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tt.err)
			handler := NewBookingHandler(mockService)
			c, _ := newContext(e, http.MethodPost, "/bookings", strings.NewReader(validBookingBody))
			withActor(c, testUser)

			assert.Equal(t, tt.wantStatus, httpStatus(t, handler.Create(c)))
		})
	}

	invalid := []struct {
		name string
		body string
	}{
		{"数量0", `{"event_id":"event-123","quantity":0,"name":"山田太郎","email":"taro@example.com"}`},
		{"氏名が1文字", `{"event_id":"event-123","quantity":1,"name":"山","email":"taro@example.com"}`},
		{"メール形式でない", `{"event_id":"event-123","quantity":1,"name":"山田太郎","email":"taro"}`},
		{"イベントIDなし", `{"quantity":1,"name":"山田太郎","email":"taro@example.com"}`},
		{"金額の指定は受け付けない", `{"event_id":"event-123","quantity":1,"name":"山田太郎","email":"taro@example.com","total_amount":1}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBookingService)
			handler := NewBookingHandler(mockService)
			c, _ := newContext(e, http.MethodPost, "/bookings", strings.NewReader(tt.body))
			withActor(c, testUser)

			assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.Create(c)))
			mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
		})
	}

	t.Run("未認証は401", func(t *testing.T) {
		handler := NewBookingHandler(new(MockBookingService))
		c, _ := newContext(e, http.MethodPost, "/bookings", strings.NewReader(validBookingBody))

		assert.Equal(t, http.StatusUnauthorized, httpStatus(t, handler.Create(c)))
	})

	t.Run("長すぎる冪等性キー", func(t *testing.T) {
		handler := NewBookingHandler(new(MockBookingService))
		c, _ := newContext(e, http.MethodPost, "/bookings", strings.NewReader(validBookingBody))
		c.Request().Header.Set(HeaderIdempotencyKey, strings.Repeat("k", maxIdempotencyKeyLength+1))
		withActor(c, testUser)

		assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.Create(c)))
	})
}

func TestBookingHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"正常にキャンセル", nil, http.StatusOK},
		{"他人の予約は403", booking.ErrForbidden, http.StatusForbidden},
		{"キャンセル済みは409", booking.ErrAlreadyCancelled, http.StatusConflict},
		{"存在しない予約は404", booking.ErrBookingNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBookingService)
			input := application.CancelBookingInput{BookingID: "booking-1", Actor: testUser}
			if tt.err != nil {
				mockService.On("CancelBooking", mock.Anything, input).Return(nil, tt.err)
			} else {
				cancelled := sampleBooking()
				now := time.Now()
				cancelled.Status = booking.StatusCancelled
				cancelled.CancelledAt = &now
				mockService.On("CancelBooking", mock.Anything, input).Return(cancelled, nil)
			}
			handler := NewBookingHandler(mockService)
			c, rec := newContext(e, http.MethodPost, "/bookings/booking-1/cancel", nil)
			withParam(withActor(c, testUser), "id", "booking-1")

			err := handler.Cancel(c)

			if tt.err == nil {
				require.NoError(t, err)
				assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
				assert.Contains(t, rec.Body.String(), `"cancelled_at"`)
				return
			}
			assert.Equal(t, tt.wantStatus, httpStatus(t, err))
		})
	}
}

func TestBookingHandler_GetAndMine(t *testing.T) {
	e := NewTestEcho()
	mockService := new(MockBookingService)
	startsAt := time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC)
	withEvent := sampleBooking()
	withEvent.Event = &booking.EventSummary{ID: "event-123", Title: "年末ライブ", Location: "東京", StartsAt: startsAt}
	mockService.On("GetBooking", mock.Anything, "booking-1", testUser).Return(withEvent, nil)
	mockService.On("ListMyBookings", mock.Anything, testUser, 10, 20).Return([]*booking.Booking{sampleBooking()}, nil)
	handler := NewBookingHandler(mockService)

	c, rec := newContext(e, http.MethodGet, "/bookings/booking-1", nil)
	withParam(withActor(c, testUser), "id", "booking-1")
	require.NoError(t, handler.GetByID(c))
	var got BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "booking-1", got.ID)
	require.NotNil(t, got.Event)
	assert.Equal(t, "年末ライブ", got.Event.Title)
	assert.Equal(t, "東京", got.Event.Location)
	assert.True(t, startsAt.Equal(got.Event.StartsAt))

	c, rec = newContext(e, http.MethodGet, "/bookings/mine?limit=10&offset=20", nil)
	withActor(c, testUser)
	require.NoError(t, handler.Mine(c))
	var list []BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
	assert.NotContains(t, rec.Body.String(), `"event":`)

	c, _ = newContext(e, http.MethodGet, "/bookings/mine?limit=x", nil)
	withActor(c, testUser)
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.Mine(c)))
}

func TestBookingHandler_List(t *testing.T) {
	e := NewTestEcho()

	t.Run("管理者向けの絞り込み一覧", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ListBookings", mock.Anything, application.ListBookingsInput{
			Actor: testAdmin, Status: "cancelled", EventID: "event-123", Page: 3, Limit: 10,
		}).Return(&application.BookingPage{Bookings: []*booking.Booking{sampleBooking()}, Total: 21, TotalPages: 3, CurrentPage: 3}, nil)
		handler := NewBookingHandler(mockService)

		c, rec := newContext(e, http.MethodGet, "/admin/bookings?status=cancelled&event_id=event-123&page=3&limit=10", nil)
		withActor(c, testAdmin)

		require.NoError(t, handler.List(c))
		var resp BookingListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 21, resp.Total)
		assert.Equal(t, 3, resp.TotalPages)
		assert.Equal(t, 3, resp.CurrentPage)
	})

	t.Run("不明な状態は400", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ListBookings", mock.Anything, mock.Anything).Return(nil, booking.ErrInvalidStatus)
		handler := NewBookingHandler(mockService)
		c, _ := newContext(e, http.MethodGet, "/admin/bookings?status=refunded", nil)
		withActor(c, testAdmin)

		assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.List(c)))
	})
}
