package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/category"
	"github.com/pitabwire/reportal/internal/formconfig"
	"github.com/pitabwire/reportal/internal/slug"
	"github.com/pitabwire/reportal/model"
)

// Categories is the category collaborator. Create must report an existing id
// as DUPLICATE_ID.
type Categories interface {
	Create(ctx context.Context, req category.CreateRequest) (model.CategoryNode, error)
}

// Configs is the form configuration collaborator.
type Configs interface {
	Load(ctx context.Context, id string) (model.FormConfiguration, error)
	Save(ctx context.Context, cfg model.FormConfiguration) (model.FormConfiguration, error)
}

// Result counts what Apply did.
type Result struct {
	CategoriesCreated int `json:"categoriesCreated"`
	CategoriesSkipped int `json:"categoriesSkipped"`
	FormsSaved        int `json:"formsSaved"`
	FormsSkipped      int `json:"formsSkipped"`
}

// Applier writes seed files. Existing categories and configurations are left
// untouched, so applying the same files twice is a no-op.
type Applier struct {
	categories Categories
	configs    Configs
	logger     *zap.Logger
}

// NewApplier creates an Applier.
func NewApplier(categories Categories, configs Configs, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{categories: categories, configs: configs, logger: logger}
}

// Apply validates every file and then writes them in order.
func (a *Applier) Apply(ctx context.Context, files []File) (Result, error) {
	if err := Validate(files); err != nil {
		return Result{}, err
	}

	var res Result
	for _, f := range files {
		for _, c := range f.Categories {
			if err := a.apply(ctx, c, "", &res); err != nil {
				return res, fmt.Errorf("applying %s: %w", f.SourceFile, err)
			}
		}
		a.logger.Info("seed file applied",
			zap.String("file", f.SourceFile),
			zap.String("checksum", f.Checksum),
		)
	}
	return res, nil
}

func (a *Applier) apply(ctx context.Context, c Category, parentID string, res *Result) error {
	c.ID = categoryID(c)

	_, err := a.categories.Create(ctx, category.CreateRequest{ID: c.ID, Title: c.Title, ParentID: parentID})
	switch {
	case err == nil:
		res.CategoriesCreated++
	case model.IsCode(err, model.ErrDuplicateID):
		res.CategoriesSkipped++
	default:
		return err
	}

	if c.Form != nil {
		_, err := a.configs.Load(ctx, c.ID)
		switch {
		case err == nil:
			res.FormsSkipped++
		case model.IsCode(err, model.ErrConfigNotFound):
			if _, err := a.configs.Save(ctx, c.Configuration()); err != nil {
				return err
			}
			res.FormsSaved++
		default:
			return err
		}
	}

	for _, child := range c.Children {
		if err := a.apply(ctx, child, c.ID, res); err != nil {
			return err
		}
	}
	return nil
}

func categoryID(c Category) string {
	if c.ID != "" {
		return slug.Slugify(c.ID)
	}
	return slug.Slugify(c.Title)
}

// Validate checks the files as a whole: ids are unique across files, titles
// are present, and forms sit only on nested leaves and pass structural
// validation.
func Validate(files []File) error {
	seen := make(map[string]string)
	var details []model.FieldError

	var walk func(file string, c Category, depth int)
	walk = func(file string, c Category, depth int) {
		id := categoryID(c)
		where := file + ": " + id
		if id == "" {
			details = append(details, model.FieldError{Field: file, Code: "REQUIRED", Message: "category id or title is required"})
			return
		}
		if prev, dup := seen[id]; dup {
			details = append(details, model.FieldError{Field: where, Code: "DUPLICATE", Message: "category declared again, first in " + prev})
		}
		seen[id] = file
		if c.Title == "" {
			details = append(details, model.FieldError{Field: where, Code: "REQUIRED", Message: "title is required"})
		}
		if c.Form != nil {
			switch {
			case len(c.Children) > 0:
				details = append(details, model.FieldError{Field: where, Code: "INVALID", Message: "only leaf categories can have a form"})
			case depth == 0:
				details = append(details, model.FieldError{Field: where, Code: "INVALID", Message: "root categories cannot have a form"})
			default:
				c.ID = id
				for _, fe := range formconfig.Validate(c.Configuration()) {
					fe.Field = where + ": " + fe.Field
					details = append(details, fe)
				}
			}
		}
		for _, child := range c.Children {
			walk(file, child, depth+1)
		}
	}

	for _, f := range files {
		for _, c := range f.Categories {
			walk(f.SourceFile, c, 0)
		}
	}
	if len(details) > 0 {
		return model.NewValidationError(details)
	}
	return nil
}
