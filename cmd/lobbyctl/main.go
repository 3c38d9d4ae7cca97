// Command lobbyctl is a line-oriented lobby client: it creates and joins
// lobbies through the directory and hands members off to the relay.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/config"
	"github.com/VissentvNoord/lobby-system/internal/coordinator"
	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/heartbeat"
	"github.com/VissentvNoord/lobby-system/internal/identity"
	"github.com/VissentvNoord/lobby-system/internal/logging"
	"github.com/VissentvNoord/lobby-system/internal/namestore"
	"github.com/VissentvNoord/lobby-system/internal/presenter"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/internal/ws"
)

func main() {
	fx.New(
		fx.Provide(
			loadConfig,
			newLogger,
			events.NewBus,
			newIdentity,
			newHTTPClient,
			newDirectory,
			newTransport,
			newRelay,
			newNames,
			newCoordinator,
			newPresenter,
			newPoller,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			fl := &fxevent.ZapLogger{Logger: l.Named("fx")}
			fl.UseLogLevel(zap.DebugLevel)
			return fl
		}),
		fx.Invoke(register),
	).Run()
}

func loadConfig() (config.Client, error) {
	return config.LoadClient()
}

func newLogger(cfg config.Client) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

func newIdentity(cfg config.Client) identity.Provider {
	if cfg.PlayerID != "" {
		return identity.Fixed(cfg.PlayerID)
	}
	return identity.NewAnonymous()
}

func newHTTPClient(cfg config.Client) *http.Client {
	return &http.Client{Timeout: cfg.RequestTimeout}
}

func newDirectory(cfg config.Client, id identity.Provider, hc *http.Client) directory.Directory {
	return directory.NewClient(cfg.DirectoryURL, id, hc)
}

func newTransport(id identity.Provider, logger *zap.Logger) *ws.Transport {
	return ws.NewTransport(id.PlayerID, logger)
}

func newRelay(cfg config.Client, id identity.Provider, hc *http.Client, tr *ws.Transport, logger *zap.Logger) coordinator.Relay {
	return relay.NewBootstrap(relay.NewHTTPClient(cfg.RelayBase(), id.PlayerID, hc), tr, logger)
}

func newNames(cfg config.Client) coordinator.Names {
	return namestore.New(cfg.NameFile)
}

type coordinatorParams struct {
	fx.In

	Directory directory.Directory
	Relay     coordinator.Relay
	Identity  identity.Provider
	Bus       *events.Bus
	Names     coordinator.Names
	Logger    *zap.Logger
}

func newCoordinator(p coordinatorParams) *coordinator.Coordinator {
	return coordinator.New(coordinator.Deps{
		Directory: p.Directory,
		Relay:     p.Relay,
		Identity:  p.Identity,
		Bus:       p.Bus,
		Names:     p.Names,
		Logger:    p.Logger,
	})
}

func newPresenter(cfg config.Client, logger *zap.Logger) (presenter.Presenter, error) {
	style, err := presenter.ParseStyle(cfg.Presenter)
	if err != nil {
		return nil, err
	}
	if style == presenter.StyleLog {
		return presenter.NewLog(logger), nil
	}
	return presenter.NewText(os.Stdout), nil
}

func newPoller(cfg config.Client, c *coordinator.Coordinator, logger *zap.Logger) *heartbeat.Poller {
	return heartbeat.New(c, heartbeat.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		PollInterval:      cfg.PollInterval,
		CallTimeout:       cfg.RequestTimeout,
		Logger:            logger,
	})
}

type appParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Shutdowner  fx.Shutdowner
	Config      config.Client
	Coordinator *coordinator.Coordinator
	Presenter   presenter.Presenter
	Poller      *heartbeat.Poller
	Transport   *ws.Transport
	Logger      *zap.Logger
}

func register(p appParams) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	unsubscribe := presenter.Subscribe(p.Coordinator.Bus(), p.Presenter)
	stopFrames := printFrames(ctx, p.Coordinator.Bus(), p.Transport, os.Stdout, &wg)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := p.Coordinator.Start(startCtx); err != nil {
				return err
			}
			wg.Add(2)
			go func() {
				defer wg.Done()
				p.Poller.Run(ctx, clock.New(), p.Config.TickRate)
			}()
			go func() {
				defer wg.Done()
				sh := &shell{c: p.Coordinator, relay: p.Transport, out: os.Stdout}
				sh.run(ctx, os.Stdin)
				if ctx.Err() != nil {
					return
				}
				if err := p.Shutdowner.Shutdown(); err != nil {
					p.Logger.Warn("shutdown request failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			stopFrames()
			unsubscribe()
			// Best-effort leave so the seat frees up before the lobby expires.
			err := p.Coordinator.Shutdown(stopCtx)
			wg.Wait()
			return err
		},
	})
}

// printFrames echoes relay traffic once a session starts or is joined.
func printFrames(ctx context.Context, bus *events.Bus, tr *ws.Transport, out io.Writer, wg *sync.WaitGroup) func() {
	h := drain(ctx, tr, out, wg)
	stopHost := bus.Subscribe(events.StartGame, h)
	stopMember := bus.Subscribe(events.JoinGame, h)
	return func() {
		stopHost()
		stopMember()
	}
}

func drain(ctx context.Context, tr *ws.Transport, out io.Writer, wg *sync.WaitGroup) events.Handler {
	return func(events.Event) {
		frames := tr.Frames()
		if frames == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case f, ok := <-frames:
					if !ok {
						return
					}
					if f.Error != "" {
						fmt.Fprintf(out, "[relay] %s\n", f.Error)
						continue
					}
					fmt.Fprintf(out, "[relay %s] %s %s\n", f.Type, f.From, f.Payload)
				}
			}
		}()
	}
}
