package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pitabwire/reportal/internal/app"
	"github.com/pitabwire/reportal/internal/config"
)

// sharedApp returns an opener that hands every command the same in-memory
// services, so state persists across invocations within a test.
func sharedApp(t *testing.T) opener {
	t.Helper()
	a, err := app.New(context.Background(), config.Defaults(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return func(context.Context, string) (*app.App, *zap.Logger, error) {
		return a, zap.NewNop(), nil
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedTreeAndShowForm(t *testing.T) {
	open := sharedApp(t)

	out, err := execute(t, open, "seed", "../../internal/seed/testdata/ops")
	require.NoError(t, err, out)
	require.Contains(t, out, "categories:")

	out, err = execute(t, open, "tree")
	require.NoError(t, err, out)
	require.Contains(t, out, "Operations (operations)\n")
	require.Contains(t, out, "  Daily Cash (daily-cash) *\n")

	out, err = execute(t, open, "show-form", "daily-cash")
	require.NoError(t, err, out)
	require.Contains(t, out, `"selectedFrequency": "daily"`)

	_, err = execute(t, open, "show-form", "nope")
	require.Error(t, err)
}

func TestImportLocationsAndClassify(t *testing.T) {
	open := sharedApp(t)
	path := filepath.Join(t.TempDir(), "offices.csv")
	require.NoError(t, os.WriteFile(path, []byte("Region,Division,Office Name\nCentral,Kampala,Nakawa BO\nCentral,Kampala,Kawempe\n"), 0o600))

	out, err := execute(t, open, "import-locations", path)
	require.NoError(t, err, out)
	require.Equal(t, "imported 2 locations\n", out)

	out, err = execute(t, open, "classify")
	require.NoError(t, err, out)
	require.Equal(t, "  Kawempe\nD Nakawa BO\n", out)
}

func TestReport(t *testing.T) {
	open := sharedApp(t)
	_, err := execute(t, open, "seed", "../../internal/seed/testdata/ops")
	require.NoError(t, err)

	out, err := execute(t, open, "report", "daily-cash", "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, err, out)
	require.Contains(t, out, "Daily Cash (Daily)")
	require.Contains(t, out, "total 0")

	_, err = execute(t, open, "report", "daily-cash", "--from", "01/01/2024")
	require.Error(t, err)
}

func TestArgsValidation(t *testing.T) {
	open := sharedApp(t)
	for _, args := range [][]string{
		{"import-locations"},
		{"seed"},
		{"show-form"},
		{"tree", "extra"},
	} {
		_, err := execute(t, open, args...)
		require.Error(t, err, args)
	}
}
