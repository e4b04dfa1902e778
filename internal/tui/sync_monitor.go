package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/keeper-sync/internal/account"
	"github.com/kelsos/keeper-sync/internal/notify"
	"github.com/kelsos/keeper-sync/internal/services"
)

// SyncMonitor renders the synchronization state while it runs.
type SyncMonitor struct {
	syncService *services.SyncService
	logPath     string
	program     *tea.Program
}

func NewSyncMonitor(syncService *services.SyncService, logPath string) *SyncMonitor {
	return &SyncMonitor{
		syncService: syncService,
		logPath:     logPath,
	}
}

func (sm *SyncMonitor) Start() error {
	model := NewModel(sm.logPath)
	model.state = sm.syncService.Store().Snapshot()
	sm.program = tea.NewProgram(model, tea.WithAltScreen())
	return nil
}

func (sm *SyncMonitor) Stop() {
	if sm.program != nil {
		sm.program.Quit()
	}
}

func (sm *SyncMonitor) AddLog(message string) {
	if sm.program != nil {
		sm.program.Send(LogMessage{Message: message})
	}
}

// Run starts synchronization and blocks until the user quits.
func (sm *SyncMonitor) Run(ctx context.Context) error {
	if sm.program == nil {
		if err := sm.Start(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribeState := sm.syncService.Store().Subscribe(func(state account.Snapshot) {
		sm.program.Send(StateUpdate{State: state})
	})
	defer unsubscribeState()

	unsubscribeNotifications := sm.syncService.Notifications().Subscribe(func(n notify.Notification) {
		sm.program.Send(NotificationMsg{Notification: n})
	})
	defer unsubscribeNotifications()

	go func() {
		sm.AddLog("Looking for Waves Keeper...")
		sm.syncService.Start(ctx)
	}()

	if _, err := sm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	cancel()
	sm.syncService.Stop()
	return nil
}
