package submission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/internal/store/storetest"
	"github.com/pitabwire/reportal/model"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s-%02d", n)
	}
}

func TestSubmitAndList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s := NewStore(store.NewMemory("primary"), nil, WithIDs(sequentialIDs()))

	inputs := []model.Submission{
		{CategoryID: "fuel", UserID: "u1", Office: "Gulu", SubmittedAt: base.Add(2 * time.Hour)},
		{CategoryID: "fuel", UserID: "u2", Office: "Mbale", SubmittedAt: base},
		{CategoryID: "cash", UserID: "u1", Office: "Gulu", SubmittedAt: base.Add(time.Hour)},
	}
	for _, in := range inputs {
		_, err := s.Submit(ctx, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all oldest first", Filter{}, []string{"s-02", "s-03", "s-01"}},
		{"by category", Filter{CategoryID: "fuel"}, []string{"s-02", "s-01"}},
		{"by user", Filter{UserID: "u1"}, []string{"s-03", "s-01"}},
		{"by office", Filter{Office: "Mbale"}, []string{"s-02"}},
		{"window", Filter{From: base.Add(time.Minute), To: base.Add(2 * time.Hour)}, []string{"s-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]string, 0, len(subs))
			for _, sub := range subs {
				got = append(got, sub.ID)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSubmit_stampsAndValidates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s := NewStore(store.NewMemory("primary"), nil, WithClock(func() time.Time { return now }))

	sub, err := s.Submit(ctx, model.Submission{CategoryID: "fuel", UserID: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID)
	require.Equal(t, now, sub.SubmittedAt)
	require.NotNil(t, sub.Values)

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, sub.CategoryID, got.CategoryID)

	_, err = s.Submit(ctx, model.Submission{CategoryID: "fuel"})
	require.Equal(t, model.ErrBadRequest, model.CodeOf(err))

	_, err = s.Get(ctx, "missing")
	require.Equal(t, model.ErrNotFound, model.CodeOf(err))
}

func TestSubmit_persistenceFailure(t *testing.T) {
	docs := storetest.Wrap(store.NewMemory("primary"))
	docs.FailWrites(storetest.ErrInjected)
	s := NewStore(docs, nil)

	_, err := s.Submit(context.Background(), model.Submission{CategoryID: "fuel", UserID: "u1"})
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	require.Equal(t, model.ErrPersistence, env.Code)
	require.Equal(t, []string{"primary"}, env.Backends)
	require.ErrorIs(t, err, storetest.ErrInjected)
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()
	s := NewStore(store.NewMemory("primary"), nil)
	for _, cat := range []string{"a", "a", "b", "c"} {
		_, err := s.Submit(ctx, model.Submission{CategoryID: cat, UserID: "u1"})
		require.NoError(t, err)
	}

	n, err := s.DeleteCategory(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	left, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "c", left[0].CategoryID)
}
