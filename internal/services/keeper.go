package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/async"
	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/keeper"
	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/metrics"
	"github.com/kelsos/keeper-sync/internal/models"
	"github.com/kelsos/keeper-sync/internal/notify"
)

const (
	presenceTaskName = "keeper-presence"
	keeperLink       = "https://wavesplatform.com/technology/keeper"
	loginTypeKeeper  = "keeper"
)

var ErrKeeperUnavailable = errors.New("waves keeper is not available")

// NodeClient is the part of the node REST API the services rely on.
type NodeClient interface {
	GetDappMeta(ctx context.Context, server, address string) (*models.MetaResponse, error)
	GetBalances(ctx context.Context, server, address string) (*models.BalancesResponse, error)
	GetScriptInfo(ctx context.Context, server, address string) (*models.ScriptInfoResponse, error)
}

// KeeperService detects the extension, negotiates authorization and keeps the
// account store in line with the wallet.
type KeeperService struct {
	config    *config.Config
	detect    keeper.Detector
	node      NodeClient
	store     *account.Store
	notifier  notify.Sink
	scheduler *async.Scheduler

	mu          sync.Mutex
	api         keeper.API
	unsubscribe func()
	refreshes   sync.WaitGroup
}

func NewKeeperService(
	cfg *config.Config,
	detect keeper.Detector,
	node NodeClient,
	store *account.Store,
	notifier notify.Sink,
	scheduler *async.Scheduler,
) *KeeperService {
	return &KeeperService{
		config:    cfg,
		detect:    detect,
		node:      node,
		store:     store,
		notifier:  notifier,
		scheduler: scheduler,
	}
}

// Supported reports whether the extension can be reached from this environment at all.
func (s *KeeperService) Supported() bool {
	u, err := url.Parse(s.config.BridgeURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Start warns about an unsupported environment or begins presence detection.
func (s *KeeperService) Start(ctx context.Context) *async.Task {
	if !s.Supported() {
		s.notifier.Notify("you use unsupported browser", notify.Options{
			Type:      notify.Warning,
			Link:      keeperLink,
			LinkTitle: "more",
		})
		return nil
	}
	return s.SetupWavesKeeper(ctx)
}

// SetupWavesKeeper polls for the extension a bounded number of times. Once it is
// found the authorization bootstrap runs on the same task.
func (s *KeeperService) SetupWavesKeeper(ctx context.Context) *async.Task {
	attempts := 0
	maxAttempts := s.config.PresenceMaxAttempts

	return s.scheduler.Every(ctx, presenceTaskName, s.config.PresenceInterval, func(ctx context.Context, _ int) bool {
		if attempts >= maxAttempts {
			metrics.PresenceChecks.WithLabelValues("exhausted").Inc()
			logger.Error("Waves Keeper not found after %d attempts", attempts)
			s.notifier.Notify("keeper is not installed", notify.Options{
				Type:      notify.Warning,
				Link:      keeperLink,
				LinkTitle: "install waves keeper",
			})
			return true
		}

		api, ok := s.detect(ctx)
		if !ok {
			metrics.PresenceChecks.WithLabelValues("absent").Inc()
			attempts++
			logger.Debug("Waves Keeper not found (attempt %d/%d)", attempts, maxAttempts)
			return false
		}

		metrics.PresenceChecks.WithLabelValues("found").Inc()
		logger.Info("Waves Keeper detected")
		s.setAPI(api)
		s.store.SetInstalled(true)

		if err := s.SetupSynchronization(ctx); err != nil {
			logger.Error("Failed to synchronize with Waves Keeper: %v", err)
		}
		return true
	})
}

// SetupSynchronization waits for the extension to initialize, ingests its public
// state and subscribes to updates.
func (s *KeeperService) SetupSynchronization(ctx context.Context) error {
	api := s.API()
	if api == nil {
		return ErrKeeperUnavailable
	}

	if err := api.Initialize(ctx); err != nil {
		return s.bootstrapFailed(ctx, api, err)
	}
	s.store.SetInitialized(true)

	state, err := api.PublicState(ctx)
	if err != nil {
		return s.bootstrapFailed(ctx, api, err)
	}

	s.store.SetAuthorized(true)
	s.UpdateWavesKeeper(ctx, *state)
	s.subscribe(ctx, api)

	logger.Info("Synchronization with Waves Keeper established")
	return nil
}

func (s *KeeperService) bootstrapFailed(ctx context.Context, api keeper.API, err error) error {
	if keeper.IsNotAuthorized(err) {
		logger.Warn("Waves Keeper reachable but application not authorized yet: %v", err)
		s.store.SetAuthorized(true)
		s.subscribe(ctx, api)
		return nil
	}

	s.store.SetAuthorized(false)
	return fmt.Errorf("failed to authorize in Waves Keeper: %w", err)
}

func (s *KeeperService) subscribe(ctx context.Context, api keeper.API) {
	unsubscribe := api.OnUpdate(func(state models.PublicState) {
		s.UpdateWavesKeeper(ctx, state)
	})

	s.mu.Lock()
	previous := s.unsubscribe
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	if previous != nil {
		previous()
	}
}

// UpdateWavesKeeper ingests one wallet snapshot. Asset and script refreshes
// run in the background and are not awaited.
func (s *KeeperService) UpdateWavesKeeper(ctx context.Context, state models.PublicState) {
	metrics.StateUpdates.Inc()

	if s.store.SetNetwork(state.Network) {
		logger.Info("Network changed to %s (%s)", state.Network.Code, state.Network.Server)
	}

	generation := s.store.BeginRefresh()
	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()
		s.refreshAccount(ctx, generation, state)
	}()

	if s.store.HasAccount() {
		if state.Account != nil {
			s.store.MergeAccount(*state.Account)
		} else {
			logger.Info("Wallet reports no active account")
			s.store.ResetAccount()
		}
	} else if state.Account != nil {
		s.store.AdoptAccount(state.Account)
	}
}

func (s *KeeperService) refreshAccount(ctx context.Context, generation uint64, state models.PublicState) {
	if err := s.UpdateAccountAssets(ctx, generation, state); err != nil {
		logger.Error("Failed to update account assets: %v", err)
		s.notifier.Notify(err.Error(), notify.Options{Type: notify.Error, Title: "Account update failed"})
	}

	if err := s.UpdateScripted(ctx, generation, state); err != nil {
		logger.Error("Failed to update account script info: %v", err)
		s.notifier.Notify(err.Error(), notify.Options{Type: notify.Error, Title: "Account update failed"})
	}
}

// UpdateAccountAssets replaces the asset list with the balances held by the snapshot's account.
func (s *KeeperService) UpdateAccountAssets(ctx context.Context, generation uint64, state models.PublicState) error {
	if state.Network == nil || state.Account == nil {
		return nil
	}

	res, err := s.node.GetBalances(ctx, state.Network.Server, state.Account.Address)
	if err != nil {
		metrics.AssetRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to fetch balances of %s: %w", state.Account.Address, err)
	}
	if res.Balances == nil {
		return nil
	}

	assets := models.Assets{models.NativeAssetID: models.NativeAsset()}
	for _, balance := range res.Balances {
		asset := models.Asset{AssetID: balance.AssetID}
		if balance.IssueTransaction != nil {
			asset.Name = balance.IssueTransaction.Name
			asset.Decimals = balance.IssueTransaction.Decimals
		}
		assets[balance.AssetID] = asset
	}

	if !s.store.ApplyAssets(generation, assets) {
		metrics.AssetRefreshes.WithLabelValues("stale").Inc()
		logger.Debug("Dropped stale asset list for %s", state.Account.Address)
		return nil
	}

	metrics.AssetRefreshes.WithLabelValues("applied").Inc()
	logger.Debug("Loaded %d assets for %s", len(assets), state.Account.Address)
	return nil
}

// UpdateScripted refreshes whether the snapshot's account carries a script.
func (s *KeeperService) UpdateScripted(ctx context.Context, generation uint64, state models.PublicState) error {
	if state.Network == nil || state.Account == nil {
		return nil
	}

	info, err := s.node.GetScriptInfo(ctx, state.Network.Server, state.Account.Address)
	if err != nil {
		return fmt.Errorf("failed to fetch script info of %s: %w", state.Account.Address, err)
	}

	s.store.ApplyScripted(generation, info.Scripted())
	return nil
}

// Login reads the current public state and records a keeper login when it has an account.
func (s *KeeperService) Login(ctx context.Context) (*models.PublicState, error) {
	api := s.API()
	if api == nil {
		return nil, ErrKeeperUnavailable
	}

	state, err := api.PublicState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to login with Waves Keeper: %w", err)
	}

	if state.Account != nil && state.Account.Address != "" {
		s.store.SetLoginType(loginTypeKeeper)
		s.UpdateWavesKeeper(ctx, *state)
	}
	return state, nil
}

// SendTx hands a transaction to the extension and returns the signed JSON.
func (s *KeeperService) SendTx(ctx context.Context, tx models.TransactionRequest) (string, error) {
	api := s.API()
	if api == nil {
		return "", ErrKeeperUnavailable
	}
	return api.SignAndPublishTransaction(ctx, tx)
}

func (s *KeeperService) API() keeper.API {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.api
}

func (s *KeeperService) setAPI(api keeper.API) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = api
}

// Wait blocks until in-flight background refreshes have finished.
func (s *KeeperService) Wait() {
	s.refreshes.Wait()
}

func (s *KeeperService) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.refreshes.Wait()
}
