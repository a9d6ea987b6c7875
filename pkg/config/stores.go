package config

import (
	"context"
	"fmt"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/backend/local"
	"github.com/objmapper/objmapper/pkg/objmap/backend/network"
)

// backingBackendID and cacheBackendID are the reserved ids for the two
// implicit backends BuildManager always creates from BackingConfig.
// Explicit entries in Config.Backends must use a different id.
const (
	backingBackendID = 1
	cacheBackendID   = 2
)

// BuildManager constructs a backend.Manager wired exactly the way
// objmapperd needs it at startup: the required persistent backend and
// optional cache backend from BackingConfig, plus any additional tiers
// from Config.Backends, plus the migration ledger if enabled.
func BuildManager(ctx context.Context, cfg *Config) (*backend.Manager, error) {
	m := backend.NewManager()

	backingStore, err := local.New(local.DefaultConfig(cfg.Backing.Dir))
	if err != nil {
		return nil, fmt.Errorf("config: backing store: %w", err)
	}
	backingBackend := backend.New(backingBackendID, backend.TypeSSD, cfg.Backing.Dir, 0, 1.0,
		backend.Flags{Enabled: true, Persistent: true, MigrationDst: true},
		backend.Watermarks{Low: 0.2, High: 0.8}, backingStore)
	if err := m.RegisterBackend(backingBackend); err != nil {
		return nil, err
	}
	if err := m.SetDefault(backingBackendID); err != nil {
		return nil, err
	}

	if cfg.Backing.CacheDir != "" {
		cacheStore, err := local.New(local.DefaultConfig(cfg.Backing.CacheDir))
		if err != nil {
			return nil, fmt.Errorf("config: cache store: %w", err)
		}
		cacheBackend := backend.New(cacheBackendID, backend.TypeMemory, cfg.Backing.CacheDir, uint64(cfg.Backing.CacheLimit), 4.0,
			backend.Flags{Enabled: true, EphemeralOnly: true, MigrationDst: true},
			backend.Watermarks{Low: 0.2, High: 0.8}, cacheStore)
		if err := m.RegisterBackend(cacheBackend); err != nil {
			return nil, err
		}
		if err := m.SetEphemeral(cacheBackendID); err != nil {
			return nil, err
		}
		if err := m.SetCache(cacheBackendID); err != nil {
			return nil, err
		}
	}

	for _, bc := range cfg.Backends {
		if bc.ID == backingBackendID || bc.ID == cacheBackendID {
			return nil, fmt.Errorf("config: backend id %d is reserved for the implicit backing/cache backends", bc.ID)
		}
		b, err := buildExtraBackend(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("config: backend %d: %w", bc.ID, err)
		}
		if err := m.RegisterBackend(b); err != nil {
			return nil, err
		}
	}

	if cfg.Ledger.Enabled {
		ledger, err := backend.OpenBadgerLedger(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("config: ledger: %w", err)
		}
		m.SetLedger(ledger)
	}

	return m, nil
}

func buildExtraBackend(ctx context.Context, bc BackendConfig) (*backend.Backend, error) {
	typ, err := backend.ParseType(bc.Type)
	if err != nil {
		return nil, err
	}

	var store backend.Store
	switch typ {
	case backend.TypeNetwork:
		if bc.S3 == nil {
			return nil, fmt.Errorf("network backend requires s3 configuration")
		}
		store, err = network.NewFromConfig(ctx, network.Config{
			Bucket:         bc.S3.Bucket,
			Region:         bc.S3.Region,
			Endpoint:       bc.S3.Endpoint,
			KeyPrefix:      bc.S3.Prefix,
			ForcePathStyle: bc.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
	default:
		if bc.MountPath == "" {
			return nil, fmt.Errorf("%s backend requires mount_path", bc.Type)
		}
		store, err = local.New(local.DefaultConfig(bc.MountPath))
		if err != nil {
			return nil, fmt.Errorf("local store: %w", err)
		}
	}

	flags := backend.Flags{
		Enabled:       true,
		EphemeralOnly: bc.EphemeralOnly,
		Persistent:    bc.Persistent,
		MigrationSrc:  bc.MigrationSrc,
		MigrationDst:  bc.MigrationDst,
		ReadOnly:      bc.ReadOnly,
	}
	wm := backend.Watermarks{Low: bc.LowWatermark, High: bc.HighWatermark}
	return backend.New(bc.ID, typ, bc.MountPath, uint64(bc.Capacity), bc.PerfFactor, flags, wm, store), nil
}
