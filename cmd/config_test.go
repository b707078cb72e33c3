package cmd

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldcoin/posthog-ios/pkg/storage"
)

func TestFindStorage_Registered_ReturnsStorage(t *testing.T) {
	defer viper.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := findStorage(ctx, "memory", nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)

	viper.Set(storagePathFlagName, t.TempDir())
	s, err = findStorage(ctx, "file", nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStorage{}, s)
}

func TestFindStorage_Unknown_Error(t *testing.T) {
	_, err := findStorage(context.Background(), "sqlite", nil)
	assert.Error(t, err)
}

func TestIdentity_DefaultsAnonymousID(t *testing.T) {
	defer viper.Reset()

	_, err := identity()
	assert.Error(t, err)

	viper.Set(distinctIDFlagName, "distinctId")
	viper.Set(groupFlagName, map[string]string{"group": "value"})
	id, err := identity()
	require.NoError(t, err)
	assert.Equal(t, "distinctId", id.DistinctID)
	assert.NotEmpty(t, id.AnonymousID)
	assert.Equal(t, map[string]string{"group": "value"}, id.Groups)
}
