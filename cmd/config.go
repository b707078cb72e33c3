package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/worldcoin/posthog-ios/pkg/eval"
	"github.com/worldcoin/posthog-ios/pkg/remote"
	"github.com/worldcoin/posthog-ios/pkg/runtime"
	"github.com/worldcoin/posthog-ios/pkg/storage"
)

const (
	hostFlagName        = "host"
	apiKeyFlagName      = "api-key"
	distinctIDFlagName  = "distinct-id"
	anonymousIDFlagName = "anonymous-id"
	groupFlagName       = "group"
	storageFlagName     = "storage"
	storagePathFlagName = "storage-path"
	redisURLFlagName    = "redis-url"
	redisPrefixFlagName = "redis-prefix"
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String(hostFlagName, "https://app.posthog.com", "Decide service host")
	cmd.Flags().String(apiKeyFlagName, "", "Project API key")
	cmd.Flags().String(distinctIDFlagName, "", "Distinct id flags are evaluated for")
	cmd.Flags().String(anonymousIDFlagName, "", "Anonymous id, a random one is used when empty")
	cmd.Flags().StringToString(groupFlagName, map[string]string{}, "Group associations e.g. company=acme")
	cmd.Flags().StringP(storageFlagName, "y", "memory", "Set a storage e.g. memory, file or redis")
	cmd.Flags().String(storagePathFlagName, "", "Directory used by the file storage")
	cmd.Flags().String(redisURLFlagName, "redis://localhost:6379/0", "Redis url used by the redis storage")
	cmd.Flags().String(redisPrefixFlagName, "posthog-flags:", "Key prefix used by the redis storage")
}

func findStorage(ctx context.Context, name string, logger *log.Entry) (storage.IStorage, error) {
	registeredStorage := map[string]func() (storage.IStorage, error){
		"memory": func() (storage.IStorage, error) {
			return storage.NewMemoryStorage(), nil
		},
		"file": func() (storage.IStorage, error) {
			fs, err := storage.NewFileStorage(viper.GetString(storagePathFlagName), logger)
			if err != nil {
				return nil, err
			}
			if err := fs.Watch(ctx); err != nil {
				return nil, err
			}
			return fs, nil
		},
		"redis": func() (storage.IStorage, error) {
			return storage.NewRedisStorage(ctx, storage.RedisStorageConfiguration{
				URL:    viper.GetString(redisURLFlagName),
				Prefix: viper.GetString(redisPrefixFlagName),
			}, logger)
		},
	}

	newStorage, ok := registeredStorage[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage %q", name)
	}
	log.Debugf("Using %s storage", name)
	return newStorage()
}

func identity() (runtime.Identity, error) {
	id := runtime.Identity{
		DistinctID:  viper.GetString(distinctIDFlagName),
		AnonymousID: viper.GetString(anonymousIDFlagName),
		Groups:      viper.GetStringMapString(groupFlagName),
	}
	if id.DistinctID == "" {
		return id, errors.New("no distinct id set")
	}
	if id.AnonymousID == "" {
		id.AnonymousID = uuid.NewString()
	}
	return id, nil
}

func newEvaluator(ctx context.Context, logger *log.Entry) (*eval.FlagEvaluator, error) {
	s, err := findStorage(ctx, viper.GetString(storageFlagName), logger)
	if err != nil {
		return nil, err
	}

	client, err := remote.NewHTTPClient(remote.HTTPClientConfiguration{
		Host:   viper.GetString(hostFlagName),
		APIKey: viper.GetString(apiKeyFlagName),
	}, logger)
	if err != nil {
		return nil, err
	}

	return eval.NewFlagEvaluator(s, client, logger), nil
}
