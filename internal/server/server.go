package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/board"
	"github.com/ClaudioCeppi83/albion-parchis/internal/economy"
	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/config"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage"
	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// InactiveTimeout is how long a socket may stay silent before it is closed.
// Clients keep themselves alive with ping.
const InactiveTimeout = 2 * time.Minute

type Server struct {
	cfg               config.Config
	log               logrus.FieldLogger
	connectionManager *ConnectionManager
	gameManager       *GameManager
	sessionManager    *SessionManager
	rateLimiter       *RateLimiter
	connectionHealth  *ConnectionHealth
	store             Store
	publisher         Publisher
}

// NewEngine builds the rules engine with the economy handlers and the
// configured phase timeouts.
func NewEngine(cfg config.Config) *parchis.Engine {
	b := board.Standard()
	return parchis.New(parchis.Config{
		Board: b,
		Timeouts: parchis.PhaseTimeouts{
			Roll:   cfg.RollTimeout,
			Move:   cfg.MoveTimeout,
			Action: cfg.ActionTimeout,
		},
		Handlers: economy.Handlers(b, economy.DefaultOptions),
	})
}

// NewServer opens storage and the event publisher, restores unfinished
// games and wires the managers.
func NewServer(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	publisher, err := OpenPublisher(ctx, cfg.RedisURL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open publisher: %w", err)
	}

	s := newServer(cfg, logger, NewEngine(cfg), store, publisher)
	if err := s.restore(ctx); err != nil {
		// Start empty rather than not at all.
		logger.WithError(err).Warn("failed to restore persisted games")
	}
	return s, nil
}

func newServer(cfg config.Config, logger logrus.FieldLogger, engine *parchis.Engine, store Store, publisher Publisher) *Server {
	return &Server{
		cfg:               cfg,
		log:               logger,
		connectionManager: NewConnectionManager(),
		gameManager:       NewGameManager(engine, ManagerOptions{AutoStart: cfg.AutoStart, Logger: logger}),
		sessionManager:    NewSessionManager(cfg.SessionSecret, cfg.SessionTTL),
		rateLimiter:       NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		connectionHealth:  NewConnectionHealth(),
		store:             store,
		publisher:         publisher,
	}
}

func (s *Server) GameManager() *GameManager { return s.gameManager }

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) restore(ctx context.Context) error {
	games, err := s.store.LoadActiveGames(ctx)
	var corrupt *storage.CorruptError
	if errors.As(err, &corrupt) {
		s.log.WithField("game_ids", corrupt.IDs).Warn("skipped stored games that no longer decode")
	} else if err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	n := s.gameManager.Restore(games)
	s.log.WithField("games", n).Info("persisted games restored")
	return nil
}

// RemoveGame unloads a game and deletes its stored snapshot, so it does not
// come back on the next restore.
func (s *Server) RemoveGame(ctx context.Context, gameID string) error {
	code := NormalizeRoomCode(gameID)
	if !s.gameManager.RemoveGame(code) {
		return parchis.Errorf(parchis.CodeGameNotFound, "game %s not found", code)
	}
	if err := s.store.DeleteGame(ctx, code); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete stored game %s: %w", code, err)
	}
	return nil
}

// Run drives the background tasks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.every(ctx, s.cfg.TickInterval, s.tickGames) })
	g.Go(func() error { return s.every(ctx, s.cfg.SaveInterval, s.periodicSave) })
	g.Go(func() error { return s.every(ctx, s.cfg.CleanupInterval, s.cleanup) })
	g.Go(func() error { return s.every(ctx, InactiveTimeout/2, s.closeInactive) })
	return g.Wait()
}

// every runs fn on each tick of interval. A non-positive interval disables
// the task.
func (s *Server) every(ctx context.Context, interval time.Duration, fn func(ctx context.Context, elapsed time.Duration)) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			fn(ctx, now.Sub(last))
			last = now
		}
	}
}

func (s *Server) tickGames(ctx context.Context, elapsed time.Duration) {
	for gameID, events := range s.gameManager.TickAll(elapsed) {
		s.broadcastEvents(gameID, events)
	}
}

func (s *Server) periodicSave(ctx context.Context, _ time.Duration) {
	saved, failed := s.saveAll(ctx)
	s.log.WithFields(logrus.Fields{"saved": saved, "failed": failed}).Debug("periodic save completed")
}

// saveAll writes every live game, holding each game's lock while it is
// encoded and stored.
func (s *Server) saveAll(ctx context.Context) (saved, failed int) {
	s.gameManager.ForEach(func(g *parchis.Game) {
		if err := s.store.SaveGame(ctx, g); err != nil {
			failed++
			s.log.WithField("game_id", g.ID).WithError(err).Warn("save failed")
			return
		}
		saved++
	})
	return saved, failed
}

func (s *Server) cleanup(ctx context.Context, _ time.Duration) {
	deleted, err := s.store.CleanupFinished(ctx, s.cfg.FinishedTTL)
	if err != nil {
		s.log.WithError(err).Warn("cleanup failed")
	}
	removed := s.gameManager.RemoveFinished(time.Now().Add(-s.cfg.FinishedTTL))
	if deleted > 0 || len(removed) > 0 {
		s.log.WithFields(logrus.Fields{"deleted": deleted, "unloaded": len(removed)}).Info("finished games cleaned up")
	}
}

func (s *Server) closeInactive(context.Context, time.Duration) {
	for _, connID := range s.connectionHealth.GetInactiveConnections(InactiveTimeout) {
		if conn := s.connectionManager.GetConnection(connID); conn != nil {
			go conn.Close(websocket.StatusPolicyViolation, "inactive connection")
		}
		s.connectionHealth.RemoveConnection(connID)
	}
}

// Shutdown saves every game, closes client sockets and releases storage and
// the publisher.
func (s *Server) Shutdown(ctx context.Context) error {
	saved, failed := s.saveAll(ctx)
	s.log.WithFields(logrus.Fields{"saved": saved, "failed": failed}).Info("games saved for shutdown")

	s.connectionManager.CloseAll(websocket.StatusGoingAway, "Server shutting down")

	var errs []error
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d games failed to save", failed))
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
