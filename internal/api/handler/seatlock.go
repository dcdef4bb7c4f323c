package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/domain/seatlock"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/realtime"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1024
	replyBuffer    = 8
)

// SeatLockHandler は座席ソフトロックの WebSocket 接続を扱う
// 信号は表示用のヒントで、予約の可否には関与しない
type SeatLockHandler struct {
	hub      *realtime.Hub
	events   EventServiceInterface
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewSeatLockHandler(hub *realtime.Hub, events EventServiceInterface) *SeatLockHandler {
	return &SeatLockHandler{
		hub:    hub,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// オリジン制限は CORS と同じく行わない
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.Named("seatlock"),
	}
}

// ErrorMessage はクライアントの不正な送信に対する応答
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Connect godoc
// @Summary 座席ソフトロックのルームに接続
// @Description lock-seat / unlock-seat を送ると同じイベントの他の接続へ seat-locked / seat-unlocked が届きます
// @Tags events
// @Param id path string true "イベントID"
// @Success 101
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/seat-locks [get]
func (h *SeatLockHandler) Connect(c echo.Context) error {
	eventID := c.Param("id")
	if _, err := h.events.GetEvent(c.Request().Context(), eventID); err != nil {
		return toHTTPError(err)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()

	// ハンドシェイク完了前にルームへ参加させ、直後の信号を取りこぼさない
	session := h.hub.Open(eventID)
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		session.Close(ctx)
		h.log.Debug("WebSocketへの切り替えに失敗", zap.Error(err))
		return nil
	}

	log := h.log.With(zap.String("event_id", eventID), zap.String("client_id", session.ID()))
	log.Debug("接続しました")

	replies := make(chan ErrorMessage, replyBuffer)
	finished := make(chan struct{})
	go h.writeLoop(conn, session, replies, finished, log)

	h.readLoop(ctx, conn, session, replies, log)

	session.Close(ctx)
	<-finished
	log.Debug("切断しました")
	return nil
}

func (h *SeatLockHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *realtime.Session, replies chan<- ErrorMessage, log *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("受信エラー", zap.Error(err))
			}
			return
		}

		intent, err := decodeIntent(data)
		if err == nil {
			err = session.Handle(ctx, intent)
		}
		if err != nil {
			select {
			case replies <- ErrorMessage{Type: "error", Message: err.Error()}:
			default:
			}
		}
	}
}

func (h *SeatLockHandler) writeLoop(conn *websocket.Conn, session *realtime.Session, replies <-chan ErrorMessage, finished chan<- struct{}, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(finished)
	}()

	write := func(v interface{}) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			log.Debug("送信に失敗", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case sig := <-session.Messages():
			if !write(sig) {
				return
			}
		case msg := <-replies:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-session.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// decodeIntent は閉じたスキーマで意図を読む。未知のフィールドや後続データは拒否する
func decodeIntent(data []byte) (seatlock.Intent, error) {
	var intent seatlock.Intent
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&intent); err != nil {
		return seatlock.Intent{}, errInvalidIntent
	}
	if dec.More() {
		return seatlock.Intent{}, errInvalidIntent
	}
	return intent, nil
}

var errInvalidIntent = errors.New("メッセージの形式が不正です")
