package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

func TestHealthHandler_Check(t *testing.T) {
	// Setup
	e := NewTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(nil)

	// Act
	err := h.Check(c)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"timestamp"`)
}

func TestHealthHandler_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus int
		wantBody   string
	}{
		{"依存先なし", nil, http.StatusOK, `"status":"ok"`},
		{"すべて疎通", map[string]CheckFunc{"postgres": ok, "redis": ok}, http.StatusOK, `"redis":"ok"`},
		{"一つでも失敗すると503", map[string]CheckFunc{"postgres": ok, "redis": down}, http.StatusServiceUnavailable, `"redis":"connection refused"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTestEcho()
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := NewHealthHandler(tt.checks).Ready(c)

			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestToEventResponse(t *testing.T) {
	now := time.Now()
	e := &event.Event{
		ID:             "event-123",
		Title:          "テストイベント",
		Location:       "テスト会場",
		Organizer:      "主催者",
		Category:       event.CategoryConcert,
		StartsAt:       now,
		TotalSeats:     100,
		AvailableSeats: 40,
		Price:          3000,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	resp := toEventResponse(e)

	assert.Equal(t, e.ID, resp.ID)
	assert.Equal(t, e.Title, resp.Title)
	assert.Equal(t, "concert", resp.Category)
	assert.Equal(t, 40, resp.AvailableSeats)
	assert.Equal(t, int64(3000), resp.Price)
	assert.Equal(t, e.StartsAt.Format(time.RFC3339), resp.StartsAt)
}

func TestToBookingResponse(t *testing.T) {
	now := time.Now()
	b := &booking.Booking{
		ID:          "booking-1",
		EventID:     "event-1",
		UserID:      "user-1",
		Contact:     booking.Contact{Name: "山田太郎", Email: "taro@example.com", Mobile: "090"},
		Quantity:    2,
		TotalAmount: 6000,
		Status:      booking.StatusCancelled,
		CreatedAt:   now,
		CancelledAt: &now,
	}

	resp := toBookingResponse(b)

	assert.Equal(t, "山田太郎", resp.Name)
	assert.Equal(t, "taro@example.com", resp.Email)
	assert.Equal(t, int64(6000), resp.TotalAmount)
	assert.Equal(t, "cancelled", resp.Status)
	assert.Equal(t, &now, resp.CancelledAt)
}
