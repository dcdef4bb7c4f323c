package event

import (
	"math"
	"strings"
	"time"
)

// MaxPrice は1席あたりの価格の上限（最小通貨単位）
const MaxPrice int64 = 1_000_000_000_000

// Category はイベントの種別
type Category string

const (
	CategoryConference Category = "conference"
	CategoryWorkshop   Category = "workshop"
	CategoryConcert    Category = "concert"
	CategorySports     Category = "sports"
	CategoryExhibition Category = "exhibition"
	CategoryOther      Category = "other"
)

// Categories は受け付けるカテゴリの一覧
var Categories = []Category{
	CategoryConference, CategoryWorkshop, CategoryConcert,
	CategorySports, CategoryExhibition, CategoryOther,
}

// IsValid はカテゴリが既知の値かを返す
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Event はイベントエンティティを表す
// AvailableSeats は Inventory の原子的操作でのみ変更される
type Event struct {
	ID             string
	Title          string
	Description    string
	Location       string
	Organizer      string
	ImageURL       string
	Category       Category
	StartsAt       time.Time
	TotalSeats     int
	AvailableSeats int
	Price          int64 // 最小通貨単位
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewEvent は新しいイベントを作成する（空席数 = 総座席数）
func NewEvent(title, description, location, organizer string, category Category, startsAt time.Time, totalSeats int, price int64) *Event {
	now := time.Now()
	if category == "" {
		category = CategoryOther
	}
	return &Event{
		Title:          strings.TrimSpace(title),
		Description:    description,
		Location:       strings.TrimSpace(location),
		Organizer:      strings.TrimSpace(organizer),
		Category:       category,
		StartsAt:       startsAt,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		Price:          price,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrTitleRequired
	}
	if e.TotalSeats < 1 {
		return ErrInvalidTotalSeats
	}
	if e.AvailableSeats < 0 || e.AvailableSeats > e.TotalSeats {
		return ErrInvalidAvailableSeats
	}
	if e.Price < 0 || e.Price > MaxPrice {
		return ErrInvalidPrice
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}

// BookedSeats は確定済み予約が保持している座席数
func (e *Event) BookedSeats() int {
	return e.TotalSeats - e.AvailableSeats
}

// PriceFor は数量分の合計金額を返す
// int64 に収まらない場合は ErrAmountOverflow
func (e *Event) PriceFor(quantity int) (int64, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}
	if e.Price < 0 {
		return 0, ErrInvalidPrice
	}
	if e.Price > math.MaxInt64/int64(quantity) {
		return 0, ErrAmountOverflow
	}
	return e.Price * int64(quantity), nil
}
