// Package submission persists completed runtime forms.
package submission

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	CategoryID string
	UserID     string
	Office     string
	From, To   time.Time
}

func (f Filter) match(s model.Submission) bool {
	switch {
	case f.CategoryID != "" && s.CategoryID != f.CategoryID:
		return false
	case f.UserID != "" && s.UserID != f.UserID:
		return false
	case f.Office != "" && s.Office != f.Office:
		return false
	case !f.From.IsZero() && s.SubmittedAt.Before(f.From):
		return false
	case !f.To.IsZero() && !s.SubmittedAt.Before(f.To):
		return false
	}
	return true
}

// Store writes submissions to a single document store, normally the
// primary. It implements the runtime sink.
type Store struct {
	docs   store.DocumentStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used when a submission carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs sets the id generator.
func WithIDs(next func() string) Option {
	return func(s *Store) { s.newID = next }
}

// NewStore creates a Store over docs.
func NewStore(docs store.DocumentStore, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		docs:   docs,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores sub under a fresh id.
func (s *Store) Submit(ctx context.Context, sub model.Submission) (model.Submission, error) {
	if sub.CategoryID == "" || sub.UserID == "" {
		return model.Submission{}, model.NewBadRequestError("submission needs a category and a user")
	}
	sub.ID = s.newID()
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now().UTC()
	}
	if sub.Values == nil {
		sub.Values = map[string]any{}
	}

	if err := store.PutJSON(ctx, s.docs, store.CollectionSubmissions, sub.ID, sub); err != nil {
		s.logger.Error("submission write failed",
			zap.String("category_id", sub.CategoryID),
			zap.String("backend", s.docs.Name()),
			zap.Error(err),
		)
		return model.Submission{}, model.NewPersistenceError(err, s.docs.Name())
	}
	s.logger.Info("submission stored",
		zap.String("submission_id", sub.ID),
		zap.String("category_id", sub.CategoryID),
	)
	return sub, nil
}

// Get returns one submission.
func (s *Store) Get(ctx context.Context, id string) (model.Submission, error) {
	sub, err := store.GetJSON[model.Submission](ctx, s.docs, store.CollectionSubmissions, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Submission{}, model.NewNotFoundError("submission " + id + " not found")
	}
	if err != nil {
		return model.Submission{}, model.NewPersistenceError(err, s.docs.Name())
	}
	return sub, nil
}

// List returns the submissions accepted by f, oldest first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.Submission, error) {
	subs, err := store.QueryJSON(ctx, s.docs, store.CollectionSubmissions, f.match)
	if err != nil {
		return nil, model.NewPersistenceError(err, s.docs.Name())
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

// DeleteCategory removes every submission of the given categories in one
// batch and returns how many were removed.
func (s *Store) DeleteCategory(ctx context.Context, categoryIDs ...string) (int, error) {
	wanted := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = true
	}
	subs, err := store.QueryJSON(ctx, s.docs, store.CollectionSubmissions, func(sub model.Submission) bool {
		return wanted[sub.CategoryID]
	})
	if err != nil {
		return 0, model.NewPersistenceError(err, s.docs.Name())
	}
	if len(subs) == 0 {
		return 0, nil
	}
	muts := make([]store.Mutation, 0, len(subs))
	for _, sub := range subs {
		muts = append(muts, store.DeleteMutation(store.CollectionSubmissions, sub.ID))
	}
	if err := s.docs.Commit(ctx, muts); err != nil {
		return 0, model.NewPersistenceError(err, s.docs.Name())
	}
	return len(subs), nil
}
