package booking

// Role は操作者の権限
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor は認証済みの操作者
type Actor struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin は管理者かを返す
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManage は予約の所有者または管理者の場合に true
func (a Actor) CanManage(b *Booking) bool {
	if a.IsAdmin() {
		return true
	}
	return a.UserID != "" && a.UserID == b.UserID
}
