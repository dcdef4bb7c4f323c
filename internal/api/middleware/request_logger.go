package middleware

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

const headerIdempotencyKey = "Idempotency-Key"

// RequestLogger はリクエストごとに一行の構造化ログを出力する
// 予約の再送を追えるよう冪等性キーと申込者も含める
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			status := res.Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			fields := []zap.Field{
				zap.String("request_id", requestIDOf(c)),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			if key := req.Header.Get(headerIdempotencyKey); key != "" {
				fields = append(fields, zap.String("idempotency_key", key))
			}
			if actor, ok := ActorFrom(c); ok {
				fields = append(fields, zap.String("user_id", actor.UserID))
			}

			level, msg := classify(status, err)
			if err != nil && level == zapcore.ErrorLevel {
				fields = append(fields, zap.Error(err))
			}
			if ce := logger.Get().Check(level, msg); ce != nil {
				ce.Write(fields...)
			}
			return err
		}
	}
}

// classify はステータスとエラーからログレベルとメッセージを決める
// エラーハンドラ前なのでステータス未確定のエラーは request failed にする
func classify(status int, err error) (zapcore.Level, string) {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel, "server error"
	case status >= 400:
		return zapcore.WarnLevel, "client error"
	case err != nil:
		return zapcore.ErrorLevel, "request failed"
	default:
		return zapcore.InfoLevel, "request completed"
	}
}

func requestIDOf(c echo.Context) string {
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// RequestIDMiddleware は X-Request-ID を引き継ぐか新しく採番する
// ハンドラからはリクエストヘッダーで参照できる
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = generateRequestID()
			}
			c.Request().Header.Set(echo.HeaderXRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

func generateRequestID() string {
	return uuid.NewString()
}
