package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func TestStrictJSONSerializer(t *testing.T) {
	e := NewEcho()
	e.POST("/", func(c echo.Context) error {
		var req sampleRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		if err := c.Validate(&req); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, req)
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"正しいリクエスト", `{"name":"山田","email":"a@example.com","quantity":1}`, http.StatusOK, ""},
		{"未知のフィールド", `{"name":"山田","email":"a@example.com","quantity":1,"price":0}`, http.StatusBadRequest, "未知のフィールドです"},
		{"型が違う", `{"name":"山田","email":"a@example.com","quantity":"1"}`, http.StatusBadRequest, "quantity の型が不正です"},
		{"壊れたJSON", `{"name":`, http.StatusBadRequest, ""},
		{"検証エラー", `{"name":"山","email":"not-mail","quantity":0}`, http.StatusBadRequest, "name は 2 以上にしてください"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				var res ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.Contains(t, res.Error, tt.wantError)
			}
		})
	}
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"HTTPErrorはそのまま", echo.NewHTTPError(http.StatusConflict, "空席がありません"), http.StatusConflict, "空席がありません"},
		{"5xxは詳細を隠す", echo.NewHTTPError(http.StatusInternalServerError, "pq: connection refused"), http.StatusInternalServerError, internalErrorMessage},
		{"素のエラーは500", errors.New("boom"), http.StatusInternalServerError, internalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			CustomHTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var res ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantMessage, res.Error)
			assert.Equal(t, tt.wantStatus, res.Code)
		})
	}
}
