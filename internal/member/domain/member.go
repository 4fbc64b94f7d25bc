package domain

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online, 2=ban ,3=delete
const (
	MemberStatusOffLine MemberStatus = iota
	MemberStatusOnLine
	MemberStatusBan
	MemberStatusDelete
)

// Member identity record owned by the identity provider
type Member struct {
	ID       int64
	MemberID string
	Email    string
	Status   MemberStatus
}

// Resolvable banned or deleted members cannot be added to a conversation
func (m *Member) Resolvable() bool {
	return m.Status != MemberStatusBan && m.Status != MemberStatusDelete
}
