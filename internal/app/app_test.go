package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/store"
	"github.com/pitabwire/reportal/internal/submission"
	"github.com/pitabwire/reportal/model"
)

func TestNew_memory(t *testing.T) {
	ctx := context.Background()
	metrics := observability.InitMetrics(prometheus.NewRegistry())

	a, err := New(ctx, config.Defaults(), nil, metrics)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Seed(ctx, []string{"../seed/testdata/ops"}, nil)
	require.NoError(t, err)
	require.Positive(t, res.CategoriesCreated)

	cfg, err := a.Configs.Load(ctx, "daily-cash")
	require.NoError(t, err)
	require.Equal(t, model.FrequencyDaily, cfg.Scope.SelectedFrequency)

	// Writes go through the instrumented stores on both backends.
	ok := testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("mirror", "put", observability.OutcomeOK)) +
		testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("mirror", "commit", observability.OutcomeOK))
	require.Positive(t, ok)

	again, err := a.Seed(ctx, []string{"../seed/testdata/ops"}, nil)
	require.NoError(t, err)
	require.Zero(t, again.CategoriesCreated)
}

func TestNew_redisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REPORTAL_TEST_REDIS", mr.Addr())

	cfg := config.Defaults()
	cfg.Stores.Mirror = config.MirrorStoreConfig{Driver: config.DriverRedis, AddrEnv: "REPORTAL_TEST_REDIS", Prefix: "t"}

	ctx := context.Background()
	a, err := New(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, "redis", a.Stores.Mirror.Name())
	require.NoError(t, a.Stores.Mirror.HealthCheck(ctx))

	require.NoError(t, store.PutJSON(ctx, a.Stores.Mirror, store.CollectionCategories, "x", map[string]string{"id": "x"}))
	require.NotEmpty(t, mr.Keys())

	require.IsType(t, &submission.RedisIdempotencyStore{}, a.Idempotency)
}

func TestNew_misconfigured(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"postgres without dsn", func(c *config.Config) {
			c.Stores.Primary = config.PrimaryStoreConfig{Driver: config.DriverPostgres, DSNEnv: "REPORTAL_TEST_UNSET_DSN"}
		}},
		{"redis without addr", func(c *config.Config) {
			c.Stores.Mirror = config.MirrorStoreConfig{Driver: config.DriverRedis, AddrEnv: "REPORTAL_TEST_UNSET_ADDR"}
		}},
		{"unknown driver", func(c *config.Config) { c.Stores.Primary.Driver = "mongo" }},
		{"missing policy file", func(c *config.Config) { c.Access.PolicyFile = "testdata/nope.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, nil, nil)
			require.Error(t, err)
		})
	}
}
