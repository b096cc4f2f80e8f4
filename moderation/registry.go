// Package moderation covers the moderator registry, pending-confession
// fan-out, decisions, and the warn/block/delete actions.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/whisperwall/whisperwall/authz"
)

const Object = "moderation"

const (
	ActionDecide           = "decide"
	ActionWarn             = "warn"
	ActionBlock            = "block"
	ActionDeleteComment    = "deleteComment"
	ActionDeleteConfession = "deleteConfession"
	ActionManageModerators = "manageModerators"
)

const (
	RoleModerator = "role:moderator"
	RolePrimary   = "role:primary"
)

// Registry is the moderator set. Membership lives in the authorization
// policy, whose SQL adapter mirrors every mutation to durable storage, and
// is read back from it at each use rather than cached here.
type Registry struct {
	authzSvc  *authz.Service
	primaryID int64
}

func NewRegistry(authzSvc *authz.Service, primaryID int64) *Registry {
	return &Registry{authzSvc: authzSvc, primaryID: primaryID}
}

// Primary is the first configured administrator, the only identity allowed
// to mutate the registry.
func (r *Registry) Primary() int64 {
	return r.primaryID
}

// Seed grants the moderator role to the configured identities. Existing
// grants are kept, so seeding on every start is safe.
func (r *Registry) Seed(ctx context.Context, moderatorIDs []int64) error {
	for _, id := range moderatorIDs {
		err := r.authzSvc.AddToGroup(ctx, authz.UserSubject(id), RoleModerator)
		if err != nil {
			return fmt.Errorf("failed to seed moderator %d: %w", id, err)
		}
	}

	return nil
}

func (r *Registry) List(ctx context.Context) ([]int64, error) {
	members, err := r.authzSvc.GroupMembers(ctx, RoleModerator)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderators: %w", err)
	}

	ids := make([]int64, 0, len(members))

	for _, member := range members {
		id, err := authz.ParseUserSubject(member)
		if err != nil {
			slog.WarnContext(ctx, "skipping non-user member of moderator role", "subject", member)

			continue
		}

		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids, nil
}

func (r *Registry) IsModerator(ctx context.Context, userID int64) bool {
	return r.authzSvc.Can(ctx, authz.UserSubject(userID), Object, ActionDecide)
}

// Add grants the moderator role. Only the primary may call it.
func (r *Registry) Add(ctx context.Context, callerID, targetID int64) error {
	err := r.authzSvc.Check(ctx, authz.UserSubject(callerID), Object, ActionManageModerators)
	if err != nil {
		return err
	}

	err = r.authzSvc.AddToGroup(ctx, authz.UserSubject(targetID), RoleModerator)
	if err != nil {
		return fmt.Errorf("failed to add moderator %d: %w", targetID, err)
	}

	return nil
}

// Remove revokes the moderator role. The primary cannot be removed.
func (r *Registry) Remove(ctx context.Context, callerID, targetID int64) error {
	err := r.authzSvc.Check(ctx, authz.UserSubject(callerID), Object, ActionManageModerators)
	if err != nil {
		return err
	}

	if targetID == r.primaryID {
		return fmt.Errorf("primary moderator %d cannot be removed", targetID)
	}

	err = r.authzSvc.RemoveFromGroup(ctx, authz.UserSubject(targetID), RoleModerator)
	if err != nil {
		return fmt.Errorf("failed to remove moderator %d: %w", targetID, err)
	}

	return nil
}
