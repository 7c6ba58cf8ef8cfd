package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateUser inserts a new user into the database.
func (q *queries) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}

	_, err := q.exec(ctx,
		"INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, user.DisplayName, unix(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (q *queries) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var (
		user      models.User
		createdAt int64
	)
	err := q.queryRow(ctx,
		"SELECT id, email, display_name, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = fromUnix(createdAt)
	return &user, nil
}

// CreateGroup inserts a new group.
func (q *queries) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now()
	}
	if group.Type == "" {
		group.Type = models.GroupTypeGroup
	}
	if group.SettlementMode == "" {
		group.SettlementMode = models.SettlementSimplified
	}

	_, err := q.exec(ctx,
		"INSERT INTO groups (id, name, group_type, settlement_mode, created_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Name, string(group.Type), string(group.SettlementMode), unix(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (q *queries) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var (
		group           models.Group
		groupType, mode string
		createdAt       int64
	)
	err := q.queryRow(ctx,
		"SELECT id, name, group_type, settlement_mode, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &groupType, &mode, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Type = models.GroupType(groupType)
	group.SettlementMode = models.SettlementMode(mode)
	group.CreatedAt = fromUnix(createdAt)
	return &group, nil
}

// AddMember inserts a membership row.
func (q *queries) AddMember(ctx context.Context, member *models.Member) error {
	if member.Role == "" {
		member.Role = models.RoleMember
	}
	if member.Status == "" {
		member.Status = models.MemberActive
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = now()
	}

	_, err := q.exec(ctx,
		"INSERT INTO group_members (group_id, user_id, role, status, joined_at) VALUES (?, ?, ?, ?, ?)",
		member.GroupID, member.UserID, string(member.Role), string(member.Status), unix(member.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// SetMemberStatus changes the status of an existing membership.
func (q *queries) SetMemberStatus(ctx context.Context, groupID, userID string, status models.MemberStatus) error {
	res, err := q.exec(ctx,
		"UPDATE group_members SET status = ? WHERE group_id = ? AND user_id = ?",
		string(status), groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
	}
	return nil
}

// GetMember retrieves a membership regardless of its status.
func (q *queries) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	var (
		m            models.Member
		role, status string
		joinedAt     int64
	)
	err := q.queryRow(ctx,
		"SELECT group_id, user_id, role, status, joined_at FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&m.GroupID, &m.UserID, &role, &status, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.Role = models.MemberRole(role)
	m.Status = models.MemberStatus(status)
	m.JoinedAt = fromUnix(joinedAt)
	return &m, nil
}

// ListMembers returns every membership of a group ordered by user id.
func (q *queries) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	rows, err := q.query(ctx,
		"SELECT group_id, user_id, role, status, joined_at FROM group_members WHERE group_id = ? ORDER BY user_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var (
			m            models.Member
			role, status string
			joinedAt     int64
		)
		if err := rows.Scan(&m.GroupID, &m.UserID, &role, &status, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = models.MemberRole(role)
		m.Status = models.MemberStatus(status)
		m.JoinedAt = fromUnix(joinedAt)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}
