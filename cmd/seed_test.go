package cmd

import (
	"testing"

	"github.com/Lumos-Labs-HQ/formseed/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedSecretFlagsReachConfig(t *testing.T) {
	t.Setenv("FORMBRICKS_API_KEY", "")
	t.Setenv("FORMBRICKS_ENVIRONMENT_ID", "")

	flags := seedCmd.Flags()
	require.NoError(t, flags.Set("api-key", "fbk_flag"))
	require.NoError(t, flags.Set("environment-id", "env_flag"))
	t.Cleanup(func() {
		_ = flags.Set("api-key", "")
		_ = flags.Set("environment-id", "")
	})

	cfg, err := config.Load()
	require.NoError(t, err)

	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "fbk_flag", key)
	env, err := cfg.EnvironmentID()
	require.NoError(t, err)
	assert.Equal(t, "env_flag", env)
}
