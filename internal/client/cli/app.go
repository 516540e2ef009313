package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/splitsync/internal/client/client"
	"github.com/dmitrijs2005/splitsync/internal/client/config"
	"github.com/dmitrijs2005/splitsync/internal/client/localid"
	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/splitsync/internal/client/services"
	"github.com/dmitrijs2005/splitsync/internal/client/syncer"
	"github.com/dmitrijs2005/splitsync/internal/client/translate"
	"github.com/dmitrijs2005/splitsync/internal/filex"
	"github.com/dmitrijs2005/splitsync/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// ledger is the part of services.LedgerService the commands use.
type ledger interface {
	EnsureProfile(ctx context.Context, sess services.Session) (int64, error)
	CreateGroup(ctx context.Context, creator int64, name, currency string) (int64, error)
	AddMember(ctx context.Context, groupID, userID int64) (int64, error)
	Members(ctx context.Context, groupID int64) ([]int64, error)
	RecordPayment(ctx context.Context, in services.PaymentInput) (int64, error)
	ArchiveGroup(ctx context.Context, userID, groupID int64) error
	RestoreGroup(ctx context.Context, userID, groupID int64) error
	FlagReauthentication(ctx context.Context, bankAccountID int64) error
	Groups(ctx context.Context, userID int64) ([]services.GroupView, error)
	Users(ctx context.Context) ([]*models.User, error)
	Status(ctx context.Context) (entities.StatusCounts, error)
	Sync(ctx context.Context, sess services.Session, deviceID string) (*syncer.Report, error)
}

type App struct {
	config      *config.Config
	log         logging.Logger
	authService services.AuthService
	ledger      ledger
	repos       *client.Repositories
	deviceID    string
	registry    *prometheus.Registry

	mu      sync.RWMutex
	Mode    Mode
	session *services.Session
	profile int64

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local replica, restores the id generator and the id
// index, and wires the sync engine to the gRPC client.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}
	repos, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, err
	}

	deviceID, err := client.DeviceID(ctx, repos.Metadata)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	floor, err := repos.Entities.MaxLocalID(ctx)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	ids, err := localid.New(ctx, repos.Metadata, floor)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	index, err := translate.NewIndex(ctx, repos.DB)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := syncer.NewMetrics(registry)

	deps := syncer.Deps{
		DB:          repos.DB,
		Remote:      apiClient,
		Index:       index,
		IDs:         ids,
		Checkpoints: syncer.NewMetadataCheckpoints(repos.Metadata),
		Logger:      log,
		Metrics:     metrics,
	}
	orch := syncer.NewOrchestrator(apiClient, log, metrics)
	orch.Register(syncer.NewManagers(c.SyncOptions(), deps)...)

	return &App{
		config:      c,
		log:         log,
		authService: services.NewAuthService(apiClient, repos.Metadata),
		ledger:      services.NewLedgerService(repos.DB, ids, index, orch),
		repos:       repos,
		deviceID:    deviceID,
		registry:    registry,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(ctx, "switched mode", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Mode
}

func (a *App) currentSession() (services.Session, int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return services.Session{}, 0, false
	}
	return *a.session, a.profile, true
}

func (a *App) setSession(sess *services.Session, profile int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = sess
	a.profile = profile
}

// Run blocks in the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.config.MetricsAddr != "" && a.registry != nil {
		go a.serveMetrics(ctx, a.config.MetricsAddr)
	}

	defer func() {
		_ = a.authService.Close(ctx)
		if a.repos != nil {
			_ = a.repos.Close()
		}
	}()
	a.Root(ctx)
}

func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to splitsync (type 'help' for commands)")

	if err := a.Login(ctx); err != nil {
		printlnFn("Error:", err)
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	_, _, ok := a.currentSession()
	return ok
}

func (a *App) getStatus() string {
	s := ""
	if sess, _, ok := a.currentSession(); ok {
		s = sess.Username + " "
	}
	s += string(a.mode())
	return s
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode. Coming back online with a server-issued session starts a sync pass.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, syncer.DefaultPingTimeout)
			err := a.authService.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.mode() == ModeOnline {
					a.setMode(ctx, ModeOffline)
				}
				continue
			}
			if a.mode() != ModeOnline {
				a.setMode(ctx, ModeOnline)
				if sess, _, ok := a.currentSession(); ok && sess.Online {
					go a.backgroundSync(ctx)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) backgroundSync(ctx context.Context) {
	sess, _, ok := a.currentSession()
	if !ok {
		return
	}
	report, err := a.ledger.Sync(ctx, sess, a.deviceID)
	if err != nil {
		a.log.Warn(ctx, "background sync failed", "error", err)
		return
	}
	a.log.Info(ctx, "background sync finished", "failed", report.Failed())
}
