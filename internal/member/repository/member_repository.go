package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"secure_chat_service/internal/member/domain"
)

// MemberRepository read side of the member table, used to resolve participants
type MemberRepository interface {
	// FindByEmails 以 email 查詢 member, 不存在的 email 直接忽略
	FindByEmails(ctx context.Context, emails []string) ([]domain.Member, error)
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) FindByEmails(ctx context.Context, emails []string) ([]domain.Member, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			normalized = append(normalized, e)
		}
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		"SELECT id, member_id, email, status FROM member WHERE lower(email) = ANY($1)",
		normalized,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.MemberID, &m.Email, &m.Status); err != nil {
			return nil, err
		}
		if m.Resolvable() {
			members = append(members, m)
		}
	}
	return members, rows.Err()
}
