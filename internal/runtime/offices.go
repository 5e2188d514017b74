package runtime

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/model"
)

// OfficeState is the loading state of the Office Name dropdown.
type OfficeState string

const (
	OfficesNone    OfficeState = ""
	OfficesLoading OfficeState = "loading"
	OfficesReady   OfficeState = "ready"
	OfficesError   OfficeState = "error"
)

type officeOptions struct {
	state   OfficeState
	options []model.Option
	err     error
}

func (o officeOptions) has(value string) bool {
	return slices.ContainsFunc(o.options, func(opt model.Option) bool { return opt.Value == value })
}

// OfficeField returns the id of the Office Name dropdown, if the form has one.
func (f *Form) OfficeField() (string, bool) {
	return f.officeField, f.officeField != ""
}

// OfficeOptions returns the live options of the Office Name dropdown with
// their loading state and the last fetch error.
func (f *Form) OfficeOptions() ([]model.Option, OfficeState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.offices.options), f.offices.state, f.offices.err
}

// RetryOffices refetches the offices backing the Office Name dropdown,
// restricted to the principal's accessible offices. On failure the previous
// options are kept.
func (f *Form) RetryOffices(ctx context.Context) error {
	if f.officeField == "" {
		return nil
	}
	f.mu.Lock()
	f.offices.state = OfficesLoading
	f.mu.Unlock()

	offices, err := f.engine.offices.Offices(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.engine.logger.Warn("office list unavailable",
			zap.String("category_id", f.cfg.ID),
			zap.Error(err),
		)
		f.offices.state = OfficesError
		f.offices.err = err
		return err
	}

	granted := location.UniqueOffices(f.principal.Offices.Filter(offices))
	options := make([]model.Option, 0, len(granted))
	for _, o := range granted {
		options = append(options, model.Option{Label: o.Name, Value: o.Name})
	}
	f.offices = officeOptions{state: OfficesReady, options: options}
	return nil
}
