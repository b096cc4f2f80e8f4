package confessions

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinTextLength = 10
	MaxCategories = 3
)

// Categories a confession may be filed under; at most MaxCategories per
// confession.
var categories = []string{
	"Relationship", "Family", "School", "Friendship",
	"Religion", "Mental", "Addiction", "Harassment",
	"Crush", "Health", "Trauma", "Sexual Assault",
	"Other",
}

// bannedTerms are matched as case-insensitive substrings of the submitted
// text. This is a static containment check, not content classification.
var bannedTerms = []string{
	"t.me/",
	"http://",
	"https://",
	"@admin",
	"buy followers",
}

func Categories() []string {
	return slices.Clone(categories)
}

func IsCategory(label string) bool {
	return slices.Contains(categories, label)
}

type Service struct {
	confessionRepo Repository
}

func NewService(confessionRepo Repository) *Service {
	return &Service{confessionRepo: confessionRepo}
}

// Submit validates and persists a new confession in pending status.
func (svc *Service) Submit(ctx context.Context, authorID int64, text string, chosen []string) (*Confession, error) {
	if len(strings.TrimSpace(text)) < MinTextLength {
		return nil, TextTooShortError{Length: len(strings.TrimSpace(text)), Min: MinTextLength}
	}

	if term, ok := containsBannedTerm(text); ok {
		return nil, ProhibitedContentError{Term: term}
	}

	if len(chosen) == 0 {
		return nil, NoCategoryError{}
	}

	if len(chosen) > MaxCategories {
		return nil, CategoryLimitError{Max: MaxCategories}
	}

	for _, label := range chosen {
		if !IsCategory(label) {
			return nil, UnknownCategoryError{Label: label}
		}
	}

	confession := &Confession{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		Text:       strings.TrimSpace(text),
		Categories: slices.Clone(chosen),
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	err := svc.confessionRepo.Insert(ctx, confession)
	if err != nil {
		return nil, fmt.Errorf("failed to insert confession: %w", err)
	}

	return confession, nil
}

func (svc *Service) Get(ctx context.Context, id string) (*Confession, error) {
	confession, err := svc.confessionRepo.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find confession: %w", err)
	}

	return confession, nil
}

func containsBannedTerm(text string) (string, bool) {
	lowered := strings.ToLower(text)

	for _, term := range bannedTerms {
		if strings.Contains(lowered, term) {
			return term, true
		}
	}

	return "", false
}
