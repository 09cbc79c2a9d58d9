package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/mini/config"
)

func TestNew_Defaults(t *testing.T) {
	o := config.New()
	require.Equal(t, 10*time.Second, o.ShutdownTimeout)
	require.NotNil(t, o.TrailingTimeout)
	require.Equal(t, 5*time.Second, *o.TrailingTimeout)
	require.Equal(t, config.ErrLog, o.Errors)
	require.Equal(t, time.Second, o.RateLimit)
	require.NotNil(t, o.Logger)
	require.NotNil(t, o.Metrics)
	require.NotNil(t, o.Tracer)
	require.NotNil(t, o.Platform)
}

func TestNew_Overrides(t *testing.T) {
	o := config.New(
		config.WithShutdownTimeout(2*time.Second),
		config.WithTrailingTimeout(nil),
		config.WithErrorPolicy(config.ErrThrow),
		config.WithRateLimit(250*time.Millisecond),
		config.WithPlatformOption("region", "us-east-1"),
		config.WithPlatformOption("image", "train:latest"),
	)
	require.Equal(t, 2*time.Second, o.ShutdownTimeout)
	require.Nil(t, o.TrailingTimeout)
	require.Equal(t, config.ErrThrow, o.Errors)
	require.Equal(t, 250*time.Millisecond, o.RateLimit)
	require.Equal(t, "us-east-1", o.Platform["region"])
	require.Equal(t, "train:latest", o.Platform["image"])
}
