package discuss

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/whisperwall/whisperwall/aura"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/reactions"
)

const DefaultPageSize = 15

type ConfessionFinder interface {
	Find(ctx context.Context, id string) (confession *confessions.Confession, err error)
}

type ReactionCounter interface {
	CountByComments(ctx context.Context, commentIDs []string) (counts map[string]reactions.KindCounts, err error)
}

type Service struct {
	commentRepo    CommentRepository
	confessionRepo ConfessionFinder
	auraRepo       aura.Repository
	reactionRepo   ReactionCounter
	pageSize       int
}

func NewService(
	commentRepo CommentRepository,
	confessionRepo ConfessionFinder,
	auraRepo aura.Repository,
	reactionRepo ReactionCounter,
	pageSize int,
) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Service{
		commentRepo:    commentRepo,
		confessionRepo: confessionRepo,
		auraRepo:       auraRepo,
		reactionRepo:   reactionRepo,
		pageSize:       pageSize,
	}
}

func (svc *Service) PageSize() int {
	return svc.pageSize
}

type Tag string

const (
	TagAuthor    Tag = "author"
	TagSelf      Tag = "self"
	TagAnonymous Tag = "anonymous"
)

// ReplyRef describes the parent of a threaded comment as rendered to a
// viewer. Ordinal is the parent's position in the confession's full
// creation-order sequence, resolvable even when the parent lies on another
// page. Removed marks a parent deleted by moderation.
type ReplyRef struct {
	Ordinal int
	OnPage  bool
	Removed bool
}

type CommentView struct {
	ID          string
	Ordinal     int
	Tag         Tag
	RawAuthorID *int64
	Points      int
	Title       string
	Body        Body
	ReplyTo     *ReplyRef
	Likes       int
	Dislikes    int
}

type Page struct {
	ConfessionID string
	Number       int
	PageCount    int
	Total        int
	Comments     []CommentView
}

type ListPageRequest struct {
	ConfessionID      string
	ViewerID          int64
	Page              int
	ViewerIsModerator bool
}

// ListPage returns one page of a confession's discussion. Out-of-range page
// numbers clamp to the nearest valid page; an approved confession with no
// comments yields an empty page, which is a valid terminal display.
func (svc *Service) ListPage(ctx context.Context, req ListPageRequest) (*Page, error) {
	confession, err := svc.browsableConfession(ctx, req.ConfessionID)
	if err != nil {
		return nil, err
	}

	total, err := svc.commentRepo.Count(ctx, req.ConfessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	if total == 0 {
		return &Page{ConfessionID: req.ConfessionID, Number: 1, PageCount: 0, Total: 0}, nil
	}

	pageCount := (total + svc.pageSize - 1) / svc.pageSize
	number := min(max(req.Page, 1), pageCount)
	offset := (number - 1) * svc.pageSize

	comments, err := svc.commentRepo.ListPage(ctx, req.ConfessionID, svc.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	views, err := svc.buildViews(ctx, confession, comments, req, offset)
	if err != nil {
		return nil, err
	}

	return &Page{
		ConfessionID: req.ConfessionID,
		Number:       number,
		PageCount:    pageCount,
		Total:        total,
		Comments:     views,
	}, nil
}

func (svc *Service) buildViews(
	ctx context.Context,
	confession *confessions.Confession,
	comments []*Comment,
	req ListPageRequest,
	offset int,
) ([]CommentView, error) {
	commentIDs := make([]string, 0, len(comments))
	authorIDs := make([]int64, 0, len(comments))
	onPage := make(map[string]int, len(comments))

	for i, comment := range comments {
		commentIDs = append(commentIDs, comment.ID)
		authorIDs = append(authorIDs, comment.AuthorID)
		onPage[comment.ID] = offset + i + 1
	}

	balances, err := svc.auraRepo.Balances(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	counts, err := svc.reactionRepo.CountByComments(ctx, commentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load reaction counts: %w", err)
	}

	views := make([]CommentView, 0, len(comments))

	for i, comment := range comments {
		view := CommentView{
			ID:      comment.ID,
			Ordinal: offset + i + 1,
			Tag:     tagFor(comment.AuthorID, confession.AuthorID, req.ViewerID),
			Points:  balances[comment.AuthorID],
			Title:   aura.TitleFor(balances[comment.AuthorID]),
			Body: Body{
				Text:        deref(comment.Content),
				StickerID:   deref(comment.StickerID),
				AnimationID: deref(comment.AnimationID),
			},
			Likes:    counts[comment.ID].Likes,
			Dislikes: counts[comment.ID].Dislikes,
		}

		if req.ViewerIsModerator {
			authorID := comment.AuthorID
			view.RawAuthorID = &authorID
		}

		if comment.ParentID != nil {
			ref, err := svc.resolveParent(ctx, comment.ConfessionID, *comment.ParentID, onPage)
			if err != nil {
				return nil, err
			}

			view.ReplyTo = ref
		}

		views = append(views, view)
	}

	return views, nil
}

// resolveParent renders a parent reference without requiring the parent to
// be on the current page: on-page parents resolve from the page itself,
// off-page parents through a rank query, deleted parents as removed.
func (svc *Service) resolveParent(ctx context.Context, confessionID, parentID string, onPage map[string]int) (*ReplyRef, error) {
	if ordinal, ok := onPage[parentID]; ok {
		return &ReplyRef{Ordinal: ordinal, OnPage: true}, nil
	}

	ordinal, err := svc.commentRepo.Rank(ctx, confessionID, parentID)
	if err != nil {
		var notFoundErr CommentNotFoundError
		if errors.As(err, &notFoundErr) {
			return &ReplyRef{Removed: true}, nil
		}

		return nil, fmt.Errorf("failed to rank parent comment: %w", err)
	}

	return &ReplyRef{Ordinal: ordinal}, nil
}

// AddComment appends a top-level comment under an approved confession.
func (svc *Service) AddComment(ctx context.Context, confessionID string, authorID int64, body Body) (*Comment, error) {
	if err := body.validate(); err != nil {
		return nil, err
	}

	if _, err := svc.browsableConfession(ctx, confessionID); err != nil {
		return nil, err
	}

	comment := newComment(confessionID, authorID, body, nil)

	err := svc.commentRepo.Insert(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	return comment, nil
}

// Reply inserts a threaded comment. The owning confession is resolved from
// the parent, so a reply can never cross confessions.
func (svc *Service) Reply(ctx context.Context, parentID string, authorID int64, body Body) (*Comment, error) {
	if err := body.validate(); err != nil {
		return nil, err
	}

	parent, err := svc.commentRepo.Find(ctx, parentID)
	if err != nil {
		var notFoundErr CommentNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, ParentNotFoundError{ID: parentID}
		}

		return nil, fmt.Errorf("failed to find parent comment: %w", err)
	}

	if _, err := svc.browsableConfession(ctx, parent.ConfessionID); err != nil {
		return nil, err
	}

	comment := newComment(parent.ConfessionID, authorID, body, &parent.ID)

	err = svc.commentRepo.Insert(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reply: %w", err)
	}

	return comment, nil
}

func (svc *Service) CountComments(ctx context.Context, confessionID string) (int, error) {
	total, err := svc.commentRepo.Count(ctx, confessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return total, nil
}

// Locate resolves the confession and the page a comment currently sits
// on, so a handler holding only a comment id can re-render its page.
func (svc *Service) Locate(ctx context.Context, commentID string) (confessionID string, page int, err error) {
	comment, err := svc.commentRepo.Find(ctx, commentID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to find comment: %w", err)
	}

	ordinal, err := svc.commentRepo.Rank(ctx, comment.ConfessionID, commentID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to rank comment: %w", err)
	}

	return comment.ConfessionID, (ordinal-1)/svc.pageSize + 1, nil
}

func (svc *Service) browsableConfession(ctx context.Context, id string) (*confessions.Confession, error) {
	confession, err := svc.confessionRepo.Find(ctx, id)
	if err != nil {
		var notFoundErr confessions.ConfessionNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, NotAvailableError{ConfessionID: id}
		}

		return nil, fmt.Errorf("failed to find confession: %w", err)
	}

	if confession.Status != confessions.StatusApproved {
		return nil, NotAvailableError{ConfessionID: id}
	}

	return confession, nil
}

func newComment(confessionID string, authorID int64, body Body, parentID *string) *Comment {
	comment := &Comment{
		ID:           uuid.NewString(),
		ConfessionID: confessionID,
		AuthorID:     authorID,
		ParentID:     parentID,
		CreatedAt:    time.Now(),
	}

	switch {
	case body.Text != "":
		comment.Content = &body.Text
	case body.StickerID != "":
		comment.StickerID = &body.StickerID
	case body.AnimationID != "":
		comment.AnimationID = &body.AnimationID
	}

	return comment
}

func tagFor(commenterID, confessionAuthorID, viewerID int64) Tag {
	switch commenterID {
	case confessionAuthorID:
		return TagAuthor
	case viewerID:
		return TagSelf
	default:
		return TagAnonymous
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
