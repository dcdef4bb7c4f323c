package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
)

const actorKey = "actor"

// Claims はアクセストークンのクレーム
type Claims struct {
	Email string       `json:"email,omitempty"`
	Role  booking.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth は Bearer トークンを検証し、申込者を echo.Context に格納する
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが必要です")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			var claims Claims
			tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tok.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンの有効期限が切れています")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
			}

			role := claims.Role
			if role != booking.RoleAdmin {
				role = booking.RoleUser
			}
			c.Set(actorKey, booking.Actor{UserID: claims.Subject, Email: claims.Email, Role: role})
			return next(c)
		}
	}
}

// RequireAdmin は管理者以外を 403 で拒否する。JWTAuth の後に使う
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが必要です")
			}
			if !actor.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "管理者権限が必要です")
			}
			return next(c)
		}
	}
}

// ActorFrom は JWTAuth が格納した申込者を取り出す
func ActorFrom(c echo.Context) (booking.Actor, bool) {
	actor, ok := c.Get(actorKey).(booking.Actor)
	return actor, ok
}

// SetActor はテストやサーバー内部から申込者を直接設定する
func SetActor(c echo.Context, actor booking.Actor) {
	c.Set(actorKey, actor)
}

// IssueToken は HS256 のアクセストークンを発行する
func IssueToken(secret string, actor booking.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: actor.Email,
		Role:  actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
