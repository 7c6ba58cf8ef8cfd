package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/apperr"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
)

// GroupService implements the Connect GroupService. It is read-only; group
// administration happens elsewhere.
type GroupService struct {
	store storage.Store
	dir   Directory
}

func NewGroupService(store storage.Store, dir Directory) *GroupService {
	return &GroupService{store: store, dir: dir}
}

// GetGroup returns a group with its members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetGroup", err)
	}

	acc, err := authorize(ctx, s.dir, req.Msg.GroupID, userID)
	if err != nil {
		return nil, toConnectError("GetGroup", err, "group_id", req.Msg.GroupID)
	}
	members, err := s.store.ListMembers(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("GetGroup", apperr.Internal("list members", err), "group_id", req.Msg.GroupID)
	}
	names, err := s.displayNames(ctx, memberIDs(members))
	if err != nil {
		return nil, toConnectError("GetGroup", err, "group_id", req.Msg.GroupID)
	}

	group := &api.Group{
		ID:             acc.group.ID,
		Name:           acc.group.Name,
		Type:           string(acc.group.Type),
		SettlementMode: string(acc.group.SettlementMode),
		Members:        make([]*api.Member, len(members)),
		CreatedAt:      acc.group.CreatedAt.Unix(),
	}
	for i, m := range members {
		group.Members[i] = &api.Member{
			UserID:      m.UserID,
			DisplayName: names[m.UserID],
			Role:        string(m.Role),
			Status:      string(m.Status),
		}
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: group}), nil
}

// GetGroupBalances returns every active member's net position, including
// members with nothing outstanding.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError("GetGroupBalances", err)
	}

	balances, err := s.balances(ctx, userID, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("GetGroupBalances", err, "group_id", req.Msg.GroupID)
	}
	ids := make([]string, len(balances))
	for i, b := range balances {
		ids[i] = b.UserID
	}
	names, err := s.displayNames(ctx, ids)
	if err != nil {
		return nil, toConnectError("GetGroupBalances", err, "group_id", req.Msg.GroupID)
	}

	out := make([]*api.MemberBalance, len(balances))
	for i, b := range balances {
		out[i] = &api.MemberBalance{
			UserID:      b.UserID,
			DisplayName: names[b.UserID],
			NetBalance:  money.Format(b.NetBalance),
			TotalOwed:   money.Format(b.TotalOwed),
			TotalOwing:  money.Format(b.TotalOwing),
		}
	}
	slog.Debug("GetGroupBalances successful", "group_id", req.Msg.GroupID, "members", len(out))
	return connect.NewResponse(&api.GetGroupBalancesResponse{GroupID: req.Msg.GroupID, Balances: out}), nil
}

func (s *GroupService) balances(ctx context.Context, userID, groupID string) ([]models.MemberBalance, error) {
	if _, err := authorize(ctx, s.dir, groupID, userID); err != nil {
		return nil, err
	}
	debts, err := s.store.ListOutstandingDebts(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("list outstanding debts", err)
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal("list members", err)
	}

	balances := calculator.MemberBalances(debts)
	seen := make(map[string]bool, len(balances))
	for _, b := range balances {
		seen[b.UserID] = true
	}
	for _, m := range members {
		if m.IsActive() && !seen[m.UserID] {
			balances = append(balances, models.MemberBalance{
				UserID:     m.UserID,
				NetBalance: decimal.Zero,
				TotalOwed:  decimal.Zero,
				TotalOwing: decimal.Zero,
			})
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].UserID < balances[j].UserID })
	return balances, nil
}

// displayNames resolves user ids to display names. Unknown users map to "".
func (s *GroupService) displayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if _, ok := names[id]; ok {
			continue
		}
		user, err := s.store.GetUser(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			names[id] = ""
			continue
		}
		if err != nil {
			return nil, apperr.Internal("load user", err)
		}
		names[id] = user.DisplayName
	}
	return names, nil
}

func memberIDs(members []models.Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}
