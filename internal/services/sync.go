package services

import (
	"context"
	"fmt"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/async"
	"github.com/kelsos/keeper-sync/internal/client"
	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/keeper"
	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/networks"
	"github.com/kelsos/keeper-sync/internal/notify"
)

// SyncService wires the keeper bridge, node client and account store into the
// keeper and dApp services.
type SyncService struct {
	config    *config.Config
	scheduler *async.Scheduler
	store     *account.Store
	registry  *networks.Registry
	hub       *notify.Hub
	Keeper    *KeeperService
	Dapp      *DappService
}

// NewSyncService creates a new sync service with all dependencies
func NewSyncService(cfg *config.Config) (*SyncService, error) {
	scheduler := async.NewScheduler()
	store := account.NewStore()
	hub := notify.NewHub(cfg.NotificationHistory)
	node := client.NewNodeClient(cfg)
	bridge := keeper.NewBridge(cfg, scheduler)

	registry := networks.NewRegistry()
	registry.Apply(cfg.Networks)

	keeperService := NewKeeperService(cfg, bridge.Detect, node, store, hub, scheduler)
	dappService, err := NewDappService(cfg, node, keeperService, store, registry, hub)
	if err != nil {
		return nil, fmt.Errorf("failed to create dapp service: %w", err)
	}

	return &SyncService{
		config:    cfg,
		scheduler: scheduler,
		store:     store,
		registry:  registry,
		hub:       hub,
		Keeper:    keeperService,
		Dapp:      dappService,
	}, nil
}

func (s *SyncService) Store() *account.Store {
	return s.store
}

func (s *SyncService) Registry() *networks.Registry {
	return s.registry
}

func (s *SyncService) Notifications() *notify.Hub {
	return s.hub
}

// Start begins presence detection. It does not wait for the extension.
func (s *SyncService) Start(ctx context.Context) {
	logger.Info("Looking for Waves Keeper at %s", s.config.BridgeURL)
	s.Keeper.Start(ctx)
}

// WaitForKeeper starts synchronization and blocks until presence detection ends.
// It reports whether the extension was found.
func (s *SyncService) WaitForKeeper(ctx context.Context) bool {
	task := s.Keeper.Start(ctx)
	if task == nil {
		return false
	}

	select {
	case <-task.Done():
	case <-ctx.Done():
		task.Stop()
		return false
	}
	return s.Keeper.API() != nil
}

func (s *SyncService) Stop() {
	s.Keeper.Stop()
	s.scheduler.StopAll()
}
