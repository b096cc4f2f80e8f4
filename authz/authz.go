// Package authz enforces who may perform moderation actions. Policy rules
// come from the embedded base policy; role membership is mutable at runtime
// and mirrored to durable storage by the provider.
package authz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Provider wraps policy enforcement and role-membership management.
type Provider interface {
	Enforce(sub, obj, act string) (allowed bool, err error)
	AddGroupingPolicy(sub, group string) (err error)
	RemoveGroupingPolicy(sub, group string) (err error)
	GroupMembers(group string) (subs []string, err error)
}

type Service struct {
	provider Provider
}

func NewService(provider Provider) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider must not be nil")
	}

	return &Service{provider: provider}, nil
}

// Check returns an *AccessDeniedError when sub may not perform act on obj.
func (svc *Service) Check(_ context.Context, sub, obj, act string) error {
	allowed, err := svc.provider.Enforce(sub, obj, act)
	if err != nil {
		return fmt.Errorf("failed to enforce authorization policy: %w", err)
	}

	if !allowed {
		return &AccessDeniedError{Sub: sub, Obj: obj, Action: act}
	}

	return nil
}

// Can is Check collapsed to a boolean for display decisions.
func (svc *Service) Can(ctx context.Context, sub, obj, act string) bool {
	return svc.Check(ctx, sub, obj, act) == nil
}

func (svc *Service) AddToGroup(_ context.Context, sub, group string) error {
	err := svc.provider.AddGroupingPolicy(sub, group)
	if err != nil {
		return fmt.Errorf("failed to add subject %q to group %q: %w", sub, group, err)
	}

	return nil
}

func (svc *Service) RemoveFromGroup(_ context.Context, sub, group string) error {
	err := svc.provider.RemoveGroupingPolicy(sub, group)
	if err != nil {
		return fmt.Errorf("failed to remove subject %q from group %q: %w", sub, group, err)
	}

	return nil
}

func (svc *Service) GroupMembers(_ context.Context, group string) ([]string, error) {
	members, err := svc.provider.GroupMembers(group)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of group %q: %w", group, err)
	}

	return members, nil
}

type AccessDeniedError struct {
	Sub    string
	Obj    string
	Action string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: sub=%q obj=%q action=%q", e.Sub, e.Obj, e.Action)
}

const userSubjectPrefix = "user:"

// UserSubject encodes a transport user identifier as a policy subject.
func UserSubject(userID int64) string {
	return userSubjectPrefix + strconv.FormatInt(userID, 10)
}

// ParseUserSubject is the inverse of UserSubject.
func ParseUserSubject(sub string) (int64, error) {
	raw, ok := strings.CutPrefix(sub, userSubjectPrefix)
	if !ok {
		return 0, fmt.Errorf("subject %q is not a user subject", sub)
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subject %q has a malformed user id: %w", sub, err)
	}

	return userID, nil
}
