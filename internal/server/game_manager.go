package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/logging"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/otel"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GameManager is the registry of live games. The map is guarded by mu;
// each game has its own lock, so actions on different games never wait on
// each other.
type GameManager struct {
	engine    *parchis.Engine
	games     map[string]*gameSlot
	usedCodes map[string]bool
	autoStart bool
	log       logrus.FieldLogger
	tracer    trace.Tracer
	mu        sync.RWMutex
}

type gameSlot struct {
	game *parchis.Game
	mu   sync.Mutex
}

type ManagerOptions struct {
	// AutoStart starts a game as soon as its last seat is taken.
	AutoStart bool
	Logger    logrus.FieldLogger
	Tracer    trace.Tracer
}

type Stats struct {
	TotalGames       int `json:"totalGames"`
	WaitingGames     int `json:"waitingGames"`
	ActiveGames      int `json:"activeGames"`
	PausedGames      int `json:"pausedGames"`
	FinishedGames    int `json:"finishedGames"`
	Players          int `json:"players"`
	ConnectedPlayers int `json:"connectedPlayers"`
}

func NewGameManager(engine *parchis.Engine, opts ManagerOptions) *GameManager {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer()
	}
	return &GameManager{
		engine:    engine,
		games:     make(map[string]*gameSlot),
		usedCodes: make(map[string]bool),
		autoStart: opts.AutoStart,
		log:       opts.Logger,
		tracer:    opts.Tracer,
	}
}

func (gm *GameManager) slot(gameID string) (*gameSlot, error) {
	gm.mu.RLock()
	s, ok := gm.games[NormalizeRoomCode(gameID)]
	gm.mu.RUnlock()
	if !ok {
		return nil, parchis.Errorf(parchis.CodeGameNotFound, "game %s not found", gameID)
	}
	return s, nil
}

func (gm *GameManager) slots() []*gameSlot {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	out := make([]*gameSlot, 0, len(gm.games))
	for _, s := range gm.games {
		out = append(out, s)
	}
	return out
}

// CreateGame opens a waiting game under a fresh room code with the host in
// the first seat.
func (gm *GameManager) CreateGame(hostName string) (string, string, error) {
	name, err := ValidateUsername(hostName)
	if err != nil {
		return "", "", err
	}

	playerID := uuid.NewString()

	gm.mu.Lock()
	code := GenerateRoomCode(gm.usedCodes)
	g, err := gm.engine.CreateGame(code, parchis.Seat{ID: playerID, Name: name})
	if err != nil {
		gm.mu.Unlock()
		return "", "", err
	}
	gm.usedCodes[code] = true
	gm.games[code] = &gameSlot{game: g}
	gm.mu.Unlock()

	gm.log.WithFields(logrus.Fields{"game_id": code, "player_id": playerID}).Info("game created")
	return code, playerID, nil
}

// JoinGame seats a new player. With AutoStart on, the join that fills the
// game also starts it and the start events are returned with the join.
func (gm *GameManager) JoinGame(gameID, username string) (string, []parchis.Event, error) {
	code := NormalizeRoomCode(gameID)
	if err := ValidateRoomCode(code); err != nil {
		return "", nil, err
	}
	name, err := ValidateUsername(username)
	if err != nil {
		return "", nil, err
	}
	s, err := gm.slot(code)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.game

	for _, p := range g.Players {
		if strings.EqualFold(p.Name, name) {
			return "", nil, parchis.Errorf(CodeUsernameTaken, "username %q is already taken in this game", name)
		}
	}

	playerID := uuid.NewString()
	_, events, err := gm.engine.Join(g, parchis.Seat{ID: playerID, Name: name})
	if err != nil {
		return "", nil, err
	}
	gm.log.WithFields(logrus.Fields{"game_id": code, "player_id": playerID, "players": len(g.Players)}).Info("player joined")

	events = append(events, gm.maybeAutoStart(g)...)
	return playerID, events, nil
}

// maybeAutoStart assumes the slot lock is held.
func (gm *GameManager) maybeAutoStart(g *parchis.Game) []parchis.Event {
	if !gm.autoStart || g.Status != parchis.StatusWaiting || len(g.Players) < parchis.MaxPlayers {
		return nil
	}
	events, err := gm.engine.Start(g)
	if err != nil {
		gm.log.WithField("game_id", g.ID).WithError(err).Info("auto-start deferred")
		return nil
	}
	gm.log.WithField("game_id", g.ID).Info("game auto-started")
	return events
}

func (gm *GameManager) StartGame(gameID string) ([]parchis.Event, error) {
	s, err := gm.slot(gameID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := gm.engine.Start(s.game)
	if err != nil {
		return nil, err
	}
	gm.log.WithFields(logrus.Fields{"game_id": s.game.ID, "players": len(s.game.Players)}).Info("game started")
	return events, nil
}

// PauseGame holds an active game on behalf of one of its players. Only a
// player can lift a manual pause; reconnections do not.
func (gm *GameManager) PauseGame(gameID, playerID string) ([]parchis.Event, error) {
	return gm.byPlayer(gameID, playerID, "game paused", gm.engine.Pause)
}

func (gm *GameManager) ResumeGame(gameID, playerID string) ([]parchis.Event, error) {
	return gm.byPlayer(gameID, playerID, "game resumed", gm.engine.Resume)
}

func (gm *GameManager) byPlayer(gameID, playerID, msg string, fn func(*parchis.Game) ([]parchis.Event, error)) ([]parchis.Event, error) {
	s, err := gm.slot(gameID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game.Player(playerID) == nil {
		return nil, parchis.Errorf(parchis.CodePlayerNotFound, "player %s not in game", playerID)
	}
	events, err := fn(s.game)
	if err != nil {
		return nil, err
	}
	gm.log.WithFields(logrus.Fields{"game_id": s.game.ID, "player_id": playerID}).Info(msg)
	return events, nil
}

func (gm *GameManager) GetGameState(gameID string) (*parchis.Snapshot, bool) {
	s, err := gm.slot(gameID)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return parchis.NewSnapshot(s.game), true
}

// RemoveGame drops a game from memory and frees its room code. Stored
// snapshots are left alone; Server.RemoveGame deletes both.
func (gm *GameManager) RemoveGame(gameID string) bool {
	code := NormalizeRoomCode(gameID)
	gm.mu.Lock()
	defer gm.mu.Unlock()
	if _, ok := gm.games[code]; !ok {
		return false
	}
	delete(gm.games, code)
	delete(gm.usedCodes, code)
	gm.log.WithField("game_id", code).Info("game removed")
	return true
}

// ProcessPlayerAction runs one action through the engine. The player id
// comes from the caller's session and overrides whatever the envelope says.
func (gm *GameManager) ProcessPlayerAction(ctx context.Context, gameID, playerID string, env parchis.Envelope) parchis.Result {
	_, span := gm.tracer.Start(ctx, "GameManager.ProcessPlayerAction", trace.WithAttributes(
		attribute.String("game.id", gameID),
		attribute.String("player.id", playerID),
		attribute.String("action.type", env.ActionType),
	))
	defer span.End()

	s, err := gm.slot(gameID)
	if err != nil {
		res := parchis.Failure(err)
		span.SetStatus(otelcodes.Error, string(res.Code))
		return res
	}

	env.PlayerID = playerID
	s.mu.Lock()
	res := gm.engine.ApplyEnvelope(s.game, env)
	s.mu.Unlock()

	fields := logrus.Fields{"game_id": gameID, "player_id": playerID, "action": env.ActionType}
	if !res.Success {
		span.SetStatus(otelcodes.Error, string(res.Code))
		gm.log.WithFields(fields).WithField("code", res.Code).Debug("action rejected")
		return res
	}

	span.SetAttributes(attribute.Int("events", len(res.Events)))
	gm.log.WithFields(fields).Debug("action applied")
	if res.Game != nil && res.Game.Status == parchis.StatusFinished && res.Game.Result != nil {
		gm.log.WithFields(fields).WithField("winner_id", res.Game.Result.WinnerID).Info("game finished")
	}
	return res
}

// Tick advances one game's timers. Integrity findings are logged, never
// returned as errors.
func (gm *GameManager) Tick(gameID string, delta time.Duration) (parchis.TickReport, []parchis.Event, error) {
	s, err := gm.slot(gameID)
	if err != nil {
		return parchis.TickReport{}, nil, err
	}
	report, events := gm.tick(s, delta)
	return report, events, nil
}

func (gm *GameManager) tick(s *gameSlot, delta time.Duration) (parchis.TickReport, []parchis.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, events := gm.engine.Tick(s.game, delta)
	log := gm.log.WithField("game_id", s.game.ID)
	if report.Expired {
		log.Debug("turn timed out")
	}
	for _, f := range report.Findings {
		log.WithField("code", f.Code).Warn(f.Message)
	}
	return report, events
}

// TickAll ticks every game and returns the new events per game id.
func (gm *GameManager) TickAll(delta time.Duration) map[string][]parchis.Event {
	out := make(map[string][]parchis.Event)
	for _, s := range gm.slots() {
		if _, events := gm.tick(s, delta); len(events) > 0 {
			out[s.game.ID] = events
		}
	}
	return out
}

func (gm *GameManager) DisconnectPlayer(gameID, playerID string) ([]parchis.Event, error) {
	s, err := gm.slot(gameID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := gm.engine.Disconnect(s.game, playerID)
	if err != nil {
		return events, err
	}
	gm.log.WithFields(logrus.Fields{"game_id": s.game.ID, "player_id": playerID, "status": s.game.Status}).Info("player disconnected")
	return events, nil
}

// ReconnectPlayer marks a seated player online again. A full waiting game
// held back by this player's absence starts now when AutoStart is on.
func (gm *GameManager) ReconnectPlayer(gameID, playerID string) ([]parchis.Event, error) {
	s, err := gm.slot(gameID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := gm.engine.Reconnect(s.game, playerID)
	if err != nil {
		return events, err
	}
	gm.log.WithFields(logrus.Fields{"game_id": s.game.ID, "player_id": playerID, "status": s.game.Status}).Info("player reconnected")
	return append(events, gm.maybeAutoStart(s.game)...), nil
}

func (gm *GameManager) AvailableMoves(gameID, playerID string) ([]parchis.Move, error) {
	s, err := gm.slot(gameID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game.Player(playerID) == nil {
		return nil, parchis.Errorf(parchis.CodePlayerNotFound, "player %s not in game", playerID)
	}
	return gm.engine.AvailableMoves(s.game, playerID), nil
}

func (gm *GameManager) Stats() Stats {
	var st Stats
	for _, s := range gm.slots() {
		s.mu.Lock()
		g := s.game
		st.TotalGames++
		switch g.Status {
		case parchis.StatusWaiting:
			st.WaitingGames++
		case parchis.StatusActive:
			st.ActiveGames++
		case parchis.StatusPaused:
			st.PausedGames++
		case parchis.StatusFinished:
			st.FinishedGames++
		}
		st.Players += len(g.Players)
		st.ConnectedPlayers += g.ConnectedCount()
		s.mu.Unlock()
	}
	return st
}

// PublicGames lists waiting games that still have a free seat, oldest
// first.
func (gm *GameManager) PublicGames() []parchis.Summary {
	out := make([]parchis.Summary, 0)
	for _, s := range gm.slots() {
		s.mu.Lock()
		if s.game.Status == parchis.StatusWaiting && len(s.game.Players) < parchis.MaxPlayers {
			out = append(out, parchis.NewSummary(s.game))
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ForEach calls fn for every game with that game's lock held.
func (gm *GameManager) ForEach(fn func(g *parchis.Game)) {
	for _, s := range gm.slots() {
		s.mu.Lock()
		fn(s.game)
		s.mu.Unlock()
	}
}

// Restore registers games loaded from storage. Games whose id is already
// live are skipped. Nobody has a socket yet, so every player starts out
// disconnected and comes back through ReconnectPlayer.
func (gm *GameManager) Restore(games []*parchis.Game) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	restored := 0
	for _, g := range games {
		if g == nil || g.ID == "" {
			continue
		}
		if _, exists := gm.games[g.ID]; exists {
			continue
		}
		gm.markOffline(g)
		gm.games[g.ID] = &gameSlot{game: g}
		gm.usedCodes[g.ID] = true
		restored++
		gm.log.WithFields(logrus.Fields{"game_id": g.ID, "status": g.Status}).Info("game restored")
	}
	return restored
}

// markOffline disconnects the current player last, so an active game
// pauses before its turn would be forced on.
func (gm *GameManager) markOffline(g *parchis.Game) {
	current := ""
	if g.CurrentTurn != nil {
		current = g.CurrentTurn.PlayerID
	}
	ids := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		if p.ID != current {
			ids = append(ids, p.ID)
		}
	}
	if current != "" && g.Player(current) != nil {
		ids = append(ids, current)
	}

	for _, id := range ids {
		if _, err := gm.engine.Disconnect(g, id); err != nil {
			gm.log.WithFields(logrus.Fields{"game_id": g.ID, "player_id": id}).WithError(err).Warn("could not mark restored player offline")
		}
	}
}

// RemoveFinished drops finished games last updated before cutoff and
// returns their ids.
func (gm *GameManager) RemoveFinished(cutoff time.Time) []string {
	var stale []string
	for _, s := range gm.slots() {
		s.mu.Lock()
		if s.game.Status == parchis.StatusFinished && s.game.UpdatedAt.Before(cutoff) {
			stale = append(stale, s.game.ID)
		}
		s.mu.Unlock()
	}
	for _, id := range stale {
		gm.RemoveGame(id)
	}
	return stale
}
