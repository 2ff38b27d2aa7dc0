package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/mrosetti/forchetta/internal/logger"
	"github.com/mrosetti/forchetta/pkg/store"
	badgerStore "github.com/mrosetti/forchetta/pkg/store/badger"
	"github.com/mrosetti/forchetta/pkg/store/backup"
	"github.com/mrosetti/forchetta/pkg/store/memory"
)

// CreateStore builds the persistence backend selected by cfg.Type, decoding
// the matching option map into the store's own config type.
func CreateStore(cfg *StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case "memory":
		logger.Info("using in-memory store (data is not persisted)")
		return memory.New(), nil
	case "badger":
		return createBadgerStore(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown store type %q (supported: memory, badger)", cfg.Type)
	}
}

func createBadgerStore(options map[string]any) (store.Store, error) {
	var storeCfg badgerStore.Config
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("decode badger store config: %w", err)
	}
	if storeCfg.Path == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger store: path is required")
	}

	s, err := badgerStore.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	logger.Info("badger store opened at %s", storeCfg.Path)
	return s, nil
}

// CreateBackupUploader builds the S3 snapshot uploader for an opened badger
// store. Returns (nil, nil) when backups are disabled. The store must be the
// badger implementation; validation enforces that before this runs.
func CreateBackupUploader(ctx context.Context, s store.Store, cfg *BackupConfig) (*backup.Uploader, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	bs, ok := s.(*badgerStore.BadgerStore)
	if !ok {
		return nil, fmt.Errorf("backup: store does not support snapshots")
	}

	var s3Cfg backup.S3Config
	if err := mapstructure.Decode(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("decode backup S3 config: %w", err)
	}

	uploader, err := backup.New(ctx, bs.DB(), s3Cfg, cfg.Interval)
	if err != nil {
		return nil, err
	}
	return uploader, nil
}
