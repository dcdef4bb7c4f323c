package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api/middleware"
)

// Routes はルーティングに必要なハンドラー一式
type Routes struct {
	Health    *HealthHandler
	Events    *EventHandler
	Bookings  *BookingHandler
	Stats     *StatsHandler
	SeatLocks *SeatLockHandler // nil ならWebSocketを公開しない
	JWTSecret string
}

// Register はAPIのルートを登録する
func (r Routes) Register(e *echo.Echo) {
	e.GET("/health", r.Health.Check)
	e.GET("/ready", r.Health.Ready)

	v1 := e.Group("/api/v1")

	// 公開
	v1.GET("/events", r.Events.List)
	v1.GET("/events/categories", r.Events.Categories)
	v1.GET("/events/:id", r.Events.GetByID)
	v1.GET("/events/:id/availability", r.Events.Availability)
	if r.SeatLocks != nil {
		v1.GET("/events/:id/seat-locks", r.SeatLocks.Connect)
	}

	// 認証済みユーザー
	bookings := v1.Group("/bookings", middleware.JWTAuth(r.JWTSecret))
	bookings.POST("", r.Bookings.Create)
	bookings.GET("/mine", r.Bookings.Mine)
	bookings.GET("/:id", r.Bookings.GetByID)
	bookings.POST("/:id/cancel", r.Bookings.Cancel)

	// 管理者
	admin := v1.Group("/admin", middleware.JWTAuth(r.JWTSecret), middleware.RequireAdmin())
	admin.GET("/events", r.Events.ListAll)
	admin.POST("/events", r.Events.Create)
	admin.PATCH("/events/:id", r.Events.Update)
	admin.PUT("/events/:id/capacity", r.Events.ChangeCapacity)
	admin.PUT("/events/:id/active", r.Events.SetActive)
	admin.DELETE("/events/:id", r.Events.Delete)
	admin.GET("/bookings", r.Bookings.List)
	admin.GET("/stats", r.Stats.Overview)
}
