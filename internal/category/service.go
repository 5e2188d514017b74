// Package category manages the parent-linked tree of report categories.
package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/model"
)

// ConfigRemover removes mirrored form configurations. The primary copies are
// deleted by the subtree batch itself.
type ConfigRemover interface {
	Delete(ctx context.Context, id string) error
}

// Service reads categories from the primary store and writes to both
// backends. Mirror writes are best-effort.
type Service struct {
	stores  store.Dual
	configs ConfigRemover
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a category Service.
func NewService(stores store.Dual, configs ConfigRemover, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		stores:  stores,
		configs: configs,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest is the input of Create.
type CreateRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parentId,omitempty"`
}

// List returns every category from the primary store.
func (s *Service) List(ctx context.Context) ([]model.CategoryNode, error) {
	nodes, err := store.QueryJSON[model.CategoryNode](ctx, s.stores.Primary, store.CollectionCategories, nil)
	if err != nil {
		return nil, model.NewPersistenceError(err, s.stores.Primary.Name())
	}
	return nodes, nil
}

// Tree returns the indexed view of all categories.
func (s *Service) Tree(ctx context.Context) (*Tree, error) {
	nodes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewTree(nodes), nil
}

// Get returns a single category.
func (s *Service) Get(ctx context.Context, id string) (model.CategoryNode, error) {
	node, err := store.GetJSON[model.CategoryNode](ctx, s.stores.Primary, store.CollectionCategories, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.CategoryNode{}, model.NewNotFoundError(fmt.Sprintf("category %q not found", id))
	}
	if err != nil {
		return model.CategoryNode{}, model.NewPersistenceError(err, s.stores.Primary.Name())
	}
	return node, nil
}

// Exists reports whether a category with id exists.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if model.IsCode(err, model.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Create adds a category under ParentID, or at the root when ParentID is
// empty.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.CategoryNode, error) {
	id := strings.TrimSpace(req.ID)
	title := strings.TrimSpace(req.Title)

	var details []model.FieldError
	if id == "" {
		details = append(details, model.FieldError{Field: "id", Code: "REQUIRED", Message: "Id is required"})
	} else if strings.Contains(id, "/") {
		details = append(details, model.FieldError{Field: "id", Code: "INVALID", Message: "Id must not contain '/'"})
	}
	if title == "" {
		details = append(details, model.FieldError{Field: "title", Code: "REQUIRED", Message: "Title is required"})
	}
	if len(details) > 0 {
		return model.CategoryNode{}, model.NewValidationError(details)
	}

	path := "/" + id
	if req.ParentID != "" {
		parent, err := s.Get(ctx, req.ParentID)
		if err != nil {
			return model.CategoryNode{}, err
		}
		path = nodePath(parent) + "/" + id
	}

	now := s.now()
	icon, color := Appearance(title)
	node := model.CategoryNode{
		ID:          id,
		Title:       title,
		ParentID:    req.ParentID,
		Path:        path,
		Icon:        icon,
		Color:       color,
		IsPage:      true,
		PageID:      id,
		CreatedAt:   now,
		LastUpdated: now,
	}
	err := store.InsertJSON(ctx, s.stores.Primary, store.CollectionCategories, id, node)
	if errors.Is(err, store.ErrExists) {
		return model.CategoryNode{}, model.NewDuplicateIDError(id)
	}
	if err != nil {
		return model.CategoryNode{}, model.NewPersistenceError(err, s.stores.Primary.Name())
	}
	s.mirror(ctx, node)

	s.logger.Info("category created",
		zap.String("category_id", id),
		zap.String("parent_id", req.ParentID),
	)
	return node, nil
}

// Rename changes the title. The path is left unchanged.
func (s *Service) Rename(ctx context.Context, id, title string) (model.CategoryNode, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.CategoryNode{}, model.NewValidationError([]model.FieldError{
			{Field: "title", Code: "REQUIRED", Message: "Title is required"},
		})
	}
	node, err := s.Get(ctx, id)
	if err != nil {
		return model.CategoryNode{}, err
	}
	node.Title = title
	node.LastUpdated = s.now()
	if err := s.write(ctx, node); err != nil {
		return model.CategoryNode{}, err
	}
	return node, nil
}

// DeleteSubtree removes id, all its descendants and their form
// configurations from the primary store in one atomic batch, then removes
// the mirror copies best-effort. It returns the deleted ids.
func (s *Service) DeleteSubtree(ctx context.Context, id string) ([]string, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.Node(id); !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("category %q not found", id))
	}

	ids := append([]string{id}, tree.Descendants(id)...)
	batch := make([]store.Mutation, 0, 2*len(ids))
	mirrorBatch := make([]store.Mutation, 0, len(ids))
	for _, target := range ids {
		batch = append(batch,
			store.DeleteMutation(store.CollectionCategories, target),
			store.DeleteMutation(store.CollectionConfigs, target),
		)
		mirrorBatch = append(mirrorBatch, store.DeleteMutation(store.CollectionCategories, target))
	}

	if err := s.stores.Primary.Commit(ctx, batch); err != nil {
		s.logger.Error("category subtree delete failed",
			zap.String("category_id", id),
			zap.Int("nodes", len(ids)),
			zap.Error(err),
		)
		return nil, model.NewPersistenceError(err, s.stores.Primary.Name())
	}

	if err := s.stores.Mirror.Commit(ctx, mirrorBatch); err != nil {
		s.logger.Warn("mirror category delete failed",
			zap.String("category_id", id),
			zap.Error(err),
		)
	}
	if s.configs != nil {
		for _, target := range ids {
			if err := s.configs.Delete(ctx, target); err != nil {
				s.logger.Warn("mirror configuration delete failed",
					zap.String("category_id", target),
					zap.Error(err),
				)
			}
		}
	}

	s.logger.Info("category subtree deleted",
		zap.String("category_id", id),
		zap.Strings("deleted", ids),
	)
	return ids, nil
}

// IsLeaf reports whether no category names id as its parent.
func (s *Service) IsLeaf(ctx context.Context, id string) (bool, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return false, err
	}
	return tree.IsLeaf(id), nil
}

// IsRoot reports whether id has no parent or a missing parent.
func (s *Service) IsRoot(ctx context.Context, id string) (bool, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return false, err
	}
	return tree.IsRoot(id), nil
}

// write stores node in the primary, then mirrors it.
func (s *Service) write(ctx context.Context, node model.CategoryNode) error {
	if err := store.PutJSON(ctx, s.stores.Primary, store.CollectionCategories, node.ID, node); err != nil {
		return model.NewPersistenceError(err, s.stores.Primary.Name())
	}
	s.mirror(ctx, node)
	return nil
}

func (s *Service) mirror(ctx context.Context, node model.CategoryNode) {
	if err := store.PutJSON(ctx, s.stores.Mirror, store.CollectionCategories, node.ID, node); err != nil {
		s.logger.Warn("mirror category write failed",
			zap.String("category_id", node.ID),
			zap.Error(err),
		)
	}
}

func nodePath(n model.CategoryNode) string {
	if n.Path != "" {
		return n.Path
	}
	return "/" + n.ID
}
