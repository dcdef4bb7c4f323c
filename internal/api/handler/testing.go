package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/api"
)

// NewTestEcho はテスト用のEchoインスタンスを作成する
func NewTestEcho() *echo.Echo {
	return api.NewEcho()
}
