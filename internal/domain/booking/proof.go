package booking

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// ProofPayload は予約証明のQRコードに埋め込む内容
type ProofPayload struct {
	BookingID   string `json:"bookingId"`
	EventID     string `json:"eventId"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	TotalAmount int64  `json:"totalAmount"`
}

// AttachProof は予約の内容から証明ペイロードを生成して設定する
// 一度設定されたペイロードは再生成しない
func (b *Booking) AttachProof() error {
	if b.QRPayload != "" {
		return nil
	}

	payload, err := json.Marshal(ProofPayload{
		BookingID:   b.ID,
		EventID:     b.EventID,
		Name:        b.Contact.Name,
		Quantity:    b.Quantity,
		TotalAmount: b.TotalAmount,
	})
	if err != nil {
		return fmt.Errorf("予約証明の生成に失敗: %w", err)
	}
	b.QRPayload = string(payload)
	return nil
}

// RenderProof はペイロードのQR画像を data URL として QRCode に設定する
// 画像はペイロードだけで決まるので、読み出しのたびに描画してよい
func (b *Booking) RenderProof() error {
	if b.QRCode != "" {
		return nil
	}
	if b.QRPayload == "" {
		return ErrProofMissing
	}

	png, err := qrcode.Encode(b.QRPayload, qrcode.Medium, qrImageSize)
	if err != nil {
		return fmt.Errorf("QRコードの生成に失敗: %w", err)
	}
	b.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return nil
}
