package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
)

func sampleEvent() *event.Event {
	now := time.Now()
	return &event.Event{
		ID: "event-123", Title: "テストイベント", Location: "東京", Organizer: "主催者",
		Category: event.CategoryConference, StartsAt: now.Add(24 * time.Hour),
		TotalSeats: 100, AvailableSeats: 100, Price: 2500, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestEventHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にイベントを作成できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.MatchedBy(func(in application.CreateEventInput) bool {
			return in.Title == "テストイベント" && in.TotalSeats == 100 && in.Price == 2500 && in.Category == event.CategoryConference
		})).Return(sampleEvent(), nil)
		handler := NewEventHandler(mockService, new(MockBookingService))

		body := `{"title":"テストイベント","location":"東京","organizer":"主催者","category":"conference",
			"starts_at":"2025-12-31T18:00:00+09:00","total_seats":100,"price":2500}`
		c, rec := newContext(e, http.MethodPost, "/admin/events", strings.NewReader(body))

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "event-123", resp.ID)
		assert.Equal(t, 100, resp.AvailableSeats)
		mockService.AssertExpectations(t)
	})

	tests := []struct {
		name string
		body string
	}{
		{"不正なJSON", "invalid json"},
		{"未知のフィールド", `{"title":"t","location":"l","organizer":"o","starts_at":"2025-12-31T18:00:00Z","total_seats":1,"available_seats":5}`},
		{"座席数なし", `{"title":"t","location":"l","organizer":"o","starts_at":"2025-12-31T18:00:00Z"}`},
		{"不明なカテゴリ", `{"title":"t","location":"l","organizer":"o","category":"karaoke","starts_at":"2025-12-31T18:00:00Z","total_seats":1}`},
		{"負の価格", `{"title":"t","location":"l","organizer":"o","starts_at":"2025-12-31T18:00:00Z","total_seats":1,"price":-1}`},
		{"価格が上限を超える", `{"title":"t","location":"l","organizer":"o","starts_at":"2025-12-31T18:00:00Z","total_seats":1,"price":4611686018427387905}`},
		{"不正な開始時刻", `{"title":"t","location":"l","organizer":"o","starts_at":"tomorrow","total_seats":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockEventService)
			handler := NewEventHandler(mockService, new(MockBookingService))
			c, _ := newContext(e, http.MethodPost, "/admin/events", strings.NewReader(tt.body))

			err := handler.Create(c)

			assert.Equal(t, http.StatusBadRequest, httpStatus(t, err))
			mockService.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
		})
	}
}

func TestEventHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にイベントを取得できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, "event-123").Return(sampleEvent(), nil)
		handler := NewEventHandler(mockService, new(MockBookingService))
		c, rec := newContext(e, http.MethodGet, "/events/event-123", nil)
		withParam(c, "id", "event-123")

		require.NoError(t, handler.GetByID(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"title":"テストイベント"`)
	})

	t.Run("存在しないイベントは404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, "missing").Return(nil, event.ErrEventNotFound)
		handler := NewEventHandler(mockService, new(MockBookingService))
		c, _ := newContext(e, http.MethodGet, "/events/missing", nil)
		withParam(c, "id", "missing")

		assert.Equal(t, http.StatusNotFound, httpStatus(t, handler.GetByID(c)))
	})
}

func TestEventHandler_List(t *testing.T) {
	e := NewTestEcho()

	t.Run("公開中のみをカテゴリで絞り込む", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, application.ListEventsInput{Category: event.CategorySports, Page: 2, Limit: 5}).
			Return(&application.EventPage{Events: []*event.Event{sampleEvent()}, Total: 6, TotalPages: 2, CurrentPage: 2}, nil)
		handler := NewEventHandler(mockService, new(MockBookingService))
		c, rec := newContext(e, http.MethodGet, "/events?category=sports&page=2&limit=5", nil)

		require.NoError(t, handler.List(c))

		var resp EventListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Events, 1)
		assert.Equal(t, 6, resp.Total)
		assert.Equal(t, 2, resp.TotalPages)
	})

	t.Run("管理者一覧は非公開を含む", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, application.ListEventsInput{IncludeInactive: true}).
			Return(&application.EventPage{Events: []*event.Event{}, CurrentPage: 1}, nil)
		handler := NewEventHandler(mockService, new(MockBookingService))
		c, _ := newContext(e, http.MethodGet, "/admin/events", nil)

		require.NoError(t, handler.ListAll(c))
		mockService.AssertExpectations(t)
	})

	t.Run("ページが数値でない", func(t *testing.T) {
		handler := NewEventHandler(new(MockEventService), new(MockBookingService))
		c, _ := newContext(e, http.MethodGet, "/events?page=abc", nil)

		assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.List(c)))
	})
}

func TestEventHandler_Update(t *testing.T) {
	e := NewTestEcho()

	t.Run("指定した項目だけを渡す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("UpdateEvent", mock.Anything, mock.MatchedBy(func(in application.UpdateEventInput) bool {
			return in.ID == "event-123" && in.Title != nil && *in.Title == "新タイトル" &&
				in.Location == nil && in.StartsAt != nil
		})).Return(sampleEvent(), nil)
		handler := NewEventHandler(mockService, new(MockBookingService))
		c, rec := newContext(e, http.MethodPatch, "/admin/events/event-123",
			strings.NewReader(`{"title":"新タイトル","starts_at":"2026-01-01T10:00:00Z"}`))
		withParam(c, "id", "event-123")

		require.NoError(t, handler.Update(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("座席数は更新項目に含めない", func(t *testing.T) {
		handler := NewEventHandler(new(MockEventService), new(MockBookingService))
		c, _ := newContext(e, http.MethodPatch, "/admin/events/event-123", strings.NewReader(`{"total_seats":10}`))
		withParam(c, "id", "event-123")

		assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.Update(c)))
	})

	t.Run("価格の上限を超える更新は拒否", func(t *testing.T) {
		mockService := new(MockEventService)
		handler := NewEventHandler(mockService, new(MockBookingService))
		c, _ := newContext(e, http.MethodPatch, "/admin/events/event-123", strings.NewReader(`{"price":1000000000001}`))
		withParam(c, "id", "event-123")

		assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.Update(c)))
		mockService.AssertNotCalled(t, "UpdateEvent", mock.Anything, mock.Anything)
	})
}

func TestEventHandler_ChangeCapacity(t *testing.T) {
	e := NewTestEcho()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"正常に変更", `{"total_seats":150}`, nil, http.StatusOK},
		{"予約済み座席数を下回る", `{"total_seats":150}`, event.ErrCapacityBelowBooked, http.StatusConflict},
		{"0席", `{"total_seats":0}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockEventService)
			if tt.serviceErr != nil {
				mockService.On("ChangeCapacity", mock.Anything, "event-123", 150).Return(nil, tt.serviceErr)
			} else {
				mockService.On("ChangeCapacity", mock.Anything, "event-123", 150).Return(sampleEvent(), nil)
			}
			handler := NewEventHandler(mockService, new(MockBookingService))
			c, rec := newContext(e, http.MethodPut, "/admin/events/event-123/capacity", strings.NewReader(tt.body))
			withParam(c, "id", "event-123")

			err := handler.ChangeCapacity(c)

			if tt.wantStatus == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			assert.Equal(t, tt.wantStatus, httpStatus(t, err))
		})
	}
}

func TestEventHandler_SetActiveAndDelete(t *testing.T) {
	e := NewTestEcho()
	mockService := new(MockEventService)
	inactive := sampleEvent()
	inactive.IsActive = false
	mockService.On("SetActive", mock.Anything, "event-123", false).Return(inactive, nil)
	mockService.On("DeleteEvent", mock.Anything, "event-123").Return(nil)
	mockService.On("DeleteEvent", mock.Anything, "missing").Return(event.ErrEventNotFound)
	handler := NewEventHandler(mockService, new(MockBookingService))

	c, rec := newContext(e, http.MethodPut, "/admin/events/event-123/active", strings.NewReader(`{"is_active":false}`))
	withParam(c, "id", "event-123")
	require.NoError(t, handler.SetActive(c))
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	c, _ = newContext(e, http.MethodPut, "/admin/events/event-123/active", strings.NewReader(`{}`))
	withParam(c, "id", "event-123")
	assert.Equal(t, http.StatusBadRequest, httpStatus(t, handler.SetActive(c)))

	c, rec = newContext(e, http.MethodDelete, "/admin/events/event-123", nil)
	withParam(c, "id", "event-123")
	require.NoError(t, handler.Delete(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, _ = newContext(e, http.MethodDelete, "/admin/events/missing", nil)
	withParam(c, "id", "missing")
	assert.Equal(t, http.StatusNotFound, httpStatus(t, handler.Delete(c)))
}

func TestEventHandler_CategoriesAndAvailability(t *testing.T) {
	e := NewTestEcho()
	events := new(MockEventService)
	bookings := new(MockBookingService)
	events.On("Categories", mock.Anything).Return([]event.Category{event.CategoryConcert, event.CategorySports}, nil)
	bookings.On("Availability", mock.Anything, "event-123").Return(42, nil)
	handler := NewEventHandler(events, bookings)

	c, rec := newContext(e, http.MethodGet, "/events/categories", nil)
	require.NoError(t, handler.Categories(c))
	assert.JSONEq(t, `{"categories":["concert","sports"]}`, rec.Body.String())

	c, rec = newContext(e, http.MethodGet, "/events/event-123/availability", nil)
	withParam(c, "id", "event-123")
	require.NoError(t, handler.Availability(c))
	assert.JSONEq(t, `{"event_id":"event-123","available_seats":42}`, rec.Body.String())
}
