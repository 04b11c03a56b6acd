package service

import (
	"context"
	"errors"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/storage"
)

const ReferencePlaceholder = "Add your notes on cognitive behavioural therapy for insomnia here."

type ReferenceRequest struct {
	Content string `json:"content" validate:"max=20000"`
}

type ReferenceService struct {
	repo   storage.ReferenceRepository
	logger internal.Logger
}

func NewReferenceService(repo storage.ReferenceRepository, logger internal.Logger) *ReferenceService {
	return &ReferenceService{repo: repo, logger: logger}
}

// Get returns the reference text, storing the placeholder on first access.
func (s *ReferenceService) Get(ctx context.Context) (*internal.ReferenceContent, error) {
	r, err := s.repo.GetReference(ctx, internal.ReferenceID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	r = &internal.ReferenceContent{ID: internal.ReferenceID, Content: ReferencePlaceholder}
	if err := s.repo.SaveReference(ctx, r); err != nil {
		s.logger.Errorf("failed to create reference content: %v", err)
		return nil, err
	}
	return r, nil
}

func (s *ReferenceService) Save(ctx context.Context, body *ReferenceRequest) (*internal.ReferenceContent, error) {
	if err := internal.Invalid(validate.Struct(body)); err != nil {
		return nil, err
	}
	r := &internal.ReferenceContent{ID: internal.ReferenceID, Content: body.Content}
	if err := s.repo.SaveReference(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
