package server

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"cellarena/game"
	"cellarena/protocol"
)

// ErrRoomClosed is returned when connecting to a room that is shutting down.
var ErrRoomClosed = errors.New("room closed")

const inboxSize = 256

// RoomConfig parameterises every room a Manager creates.
type RoomConfig struct {
	Settings    game.Settings
	FastEvery   time.Duration
	MediumEvery time.Duration
	SlowEvery   time.Duration

	// Logger defaults to the package logger.
	Logger *zap.Logger
	// WorldOptions are passed to game.New after the logger option.
	WorldOptions []game.Option
}

func (c *RoomConfig) applyDefaults() {
	if c.FastEvery <= 0 {
		c.FastEvery = 20 * time.Millisecond
	}
	if c.MediumEvery <= 0 {
		c.MediumEvery = 30 * time.Millisecond
	}
	if c.SlowEvery <= 0 {
		c.SlowEvery = time.Second
	}
	if c.Logger == nil {
		c.Logger = Log.Desugar()
	}
}

// Room is one arena: a World plus the sessions watching it. All world and
// session state is owned by the room goroutine; other goroutines talk to it
// through the inbox only.
type Room struct {
	ID string

	cfg     RoomConfig
	world   *game.World
	log     *zap.Logger
	metrics *RoomMetrics

	inbox    chan command
	sessions map[SessionID]*session
	byPlayer map[game.PlayerID]*session
	nextID   atomic.Uint64

	started  atomic.Bool
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
	closeErr error
}

// NewRoom builds a room and its world. The tick loops start with StartTicker.
func NewRoom(id string, cfg RoomConfig) (*Room, error) {
	cfg.applyDefaults()
	log := cfg.Logger.With(zap.String("room", id))
	opts := append([]game.Option{game.WithLogger(log)}, cfg.WorldOptions...)
	world, err := game.New(cfg.Settings, opts...)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", id, err)
	}
	return &Room{
		ID:       id,
		cfg:      cfg,
		world:    world,
		log:      log,
		metrics:  &RoomMetrics{},
		inbox:    make(chan command, inboxSize),
		sessions: make(map[SessionID]*session),
		byPlayer: make(map[game.PlayerID]*session),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Settings are immutable and safe to read from any goroutine.
func (r *Room) Settings() game.Settings { return r.cfg.Settings }

// Metrics exposes the room counters.
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Connect attaches conn and returns its session id. Frames for the session
// are encoded with codec.
func (r *Room) Connect(conn Conn, codec protocol.Codec) (SessionID, error) {
	id := SessionID(r.nextID.Add(1))
	select {
	case <-r.quit:
		return 0, ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- attach{id: id, conn: conn, codec: codec}:
		return id, nil
	case <-r.quit:
		return 0, ErrRoomClosed
	}
}

// Submit queues an intent without blocking. When the inbox is full the
// intent is dropped and counted.
func (r *Room) Submit(id SessionID, in protocol.Intent) {
	select {
	case r.inbox <- deliver{id: id, intent: in}:
	default:
		r.metrics.IncInboxFull()
	}
}

// Disconnect blocks until the room has queued the removal, so that the
// player is gone before the next tick runs.
func (r *Room) Disconnect(id SessionID) {
	select {
	case r.inbox <- detach{id: id}:
	case <-r.quit:
	}
}

// drain applies the commands queued so far. Commands arriving meanwhile wait
// for the next tick.
func (r *Room) drain() {
	for n := len(r.inbox); n > 0; n-- {
		r.handle(<-r.inbox)
	}
}

func (r *Room) handle(cmd command) {
	switch c := cmd.(type) {
	case attach:
		r.sessions[c.id] = &session{id: c.id, conn: c.conn, codec: c.codec}
		r.metrics.AddConnections(1)
	case deliver:
		s, ok := r.sessions[c.id]
		if !ok {
			r.metrics.IncIgnored()
			return
		}
		r.apply(s, c.intent)
	case detach:
		r.detach(c.id)
	}
}

func (r *Room) apply(s *session, in protocol.Intent) {
	if j, ok := in.(protocol.Join); ok {
		r.join(s, j.Name)
		return
	}
	if !s.joined() {
		r.metrics.IncIgnored()
		return
	}

	var err error
	switch in := in.(type) {
	case protocol.Move:
		err = r.world.ApplyIntent(s.player, game.Vec{X: in.DX, Y: in.DY})
	case protocol.Target:
		err = r.world.ApplyTarget(s.player, game.Vec{X: in.X, Y: in.Y})
	case protocol.Split:
		err = r.world.ApplySplit(s.player)
	case protocol.Score:
		r.log.Debug("ignoring client-reported score", zap.String("player", string(s.player)), zap.Int("score", in.Score))
		r.metrics.IncIgnored()
		return
	default:
		err = fmt.Errorf("intent %T not handled", in)
	}
	if err != nil {
		r.log.Debug("intent ignored", zap.String("player", string(s.player)), zap.Error(err))
		r.metrics.IncIgnored()
		return
	}
	r.metrics.IncAccepted()
}

func (r *Room) join(s *session, name string) {
	if s.joined() {
		r.metrics.IncIgnored()
		return
	}
	s.player = r.world.AddPlayer(name)
	r.byPlayer[s.player] = s
	r.metrics.IncAccepted()
	r.send(s, protocol.GameParams{
		PlayerID: string(s.player),
		Settings: protocol.ParamsFrom(r.cfg.Settings),
	})
}

func (r *Room) detach(id SessionID) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	r.metrics.AddConnections(-1)
	if s.joined() {
		delete(r.byPlayer, s.player)
		if err := r.world.RemovePlayer(s.player); err != nil {
			r.log.Debug("detach", zap.Error(err))
		}
	}
	_ = s.conn.Close()
}

// send is fire-and-forget: a slow or broken client loses the frame.
func (r *Room) send(s *session, m protocol.Message) {
	b, err := protocol.Encode(s.codec, m)
	if err != nil {
		r.log.Error("encode failed", zap.String("type", m.Type()), zap.Error(err))
		return
	}
	r.sendFrame(s, b)
}

func (r *Room) sendFrame(s *session, b []byte) {
	if err := s.conn.Send(b); err != nil {
		r.metrics.IncSendDropped()
		r.log.Debug("send dropped", zap.Uint64("session", uint64(s.id)), zap.Error(err))
	}
}

// broadcast encodes m once per codec in use and queues it to every session.
func (r *Room) broadcast(m protocol.Message) {
	frames := make(map[protocol.Codec][]byte, 2)
	for _, s := range r.sessions {
		b, ok := frames[s.codec]
		if !ok {
			var err error
			if b, err = protocol.Encode(s.codec, m); err != nil {
				r.log.Error("encode failed", zap.String("type", m.Type()), zap.Error(err))
				return
			}
			frames[s.codec] = b
		}
		r.sendFrame(s, b)
	}
}

// Close stops the tick loops and closes every connection.
func (r *Room) Close() error {
	r.stopOnce.Do(func() {
		close(r.quit)
		if r.started.Load() {
			<-r.done
			return
		}
		r.closeErr = r.shutdown()
	})
	return r.closeErr
}

func (r *Room) shutdown() error {
	r.drain()
	var err error
	for id, s := range r.sessions {
		err = multierr.Append(err, s.conn.Close())
		delete(r.sessions, id)
	}
	r.metrics.setPopulation(0, 0)
	atomic.StoreInt64(&r.metrics.Connections, 0)
	r.log.Info("room closed")
	return err
}
