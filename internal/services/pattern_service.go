package services

import (
	"context"
	"fmt"
	"log/slog"

	"financify/internal/core"
)

// PatternService manages the caller's extraction patterns. Titles are
// matched case-insensitively.
type PatternService struct {
	repo PatternRepository
}

func NewPatternService(repo PatternRepository) *PatternService {
	return &PatternService{repo: repo}
}

func (s *PatternService) Create(ctx context.Context, userID int64, p core.Pattern) (core.Pattern, error) {
	p.UserID = userID
	p.Title = core.NormalizeTitle(p.Title)
	if err := p.Validate(); err != nil {
		return core.Pattern{}, core.Invalid(err)
	}
	created, err := s.repo.CreatePattern(ctx, p)
	if err != nil {
		return core.Pattern{}, fmt.Errorf("create pattern: %w", err)
	}
	slog.InfoContext(ctx, "Pattern created", "id", created.ID, "user_id", userID, "title", created.Title)
	return created, nil
}

func (s *PatternService) List(ctx context.Context, userID int64) ([]core.Pattern, error) {
	return s.repo.ListPatterns(ctx, userID)
}

// Get returns one of the caller's patterns by id.
func (s *PatternService) Get(ctx context.Context, userID, id int64) (core.Pattern, error) {
	p, err := s.repo.GetPattern(ctx, id)
	if err != nil {
		return core.Pattern{}, err
	}
	if p.UserID != userID {
		return core.Pattern{}, fmt.Errorf("pattern id %d: %w", id, core.ErrForbidden)
	}
	return p, nil
}

func (s *PatternService) GetByTitle(ctx context.Context, userID int64, title string) (core.Pattern, error) {
	return s.repo.GetPatternByTitle(ctx, userID, core.NormalizeTitle(title))
}
