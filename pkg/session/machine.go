// Package session runs the matchmaking and move exchange of one bot.
//
// A Machine owns a single engine.GameSession. Inbound deliveries, local
// commands and due replies are handled one at a time by Run, which is the
// only writer of the session. Replies are scheduled on timers so that
// messages arriving during the reply delay are still handled.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/lhbot/internal/logger"
	"github.com/yourusername/lhbot/internal/metrics"
	"github.com/yourusername/lhbot/internal/positionid"
	"github.com/yourusername/lhbot/pkg/archive"
	"github.com/yourusername/lhbot/pkg/engine"
	"github.com/yourusername/lhbot/pkg/policy"
	"github.com/yourusername/lhbot/pkg/protocol"
	"github.com/yourusername/lhbot/pkg/transport"
)

const (
	DefaultReplyDelay  = time.Second
	DefaultNonceMemory = 64
)

// Drop reasons, as counted by metrics.
const (
	dropSelf          = "self"
	dropParseFault    = "parse_fault"
	dropDuplicate     = "duplicate"
	dropIllegalMove   = "illegal_move"
	dropForeignSender = "foreign_sender"
	dropNotPlaying    = "not_playing"
	dropBusy          = "busy"
	dropInvalidAction = "invalid_action"
	dropPublish       = "publish_failed"
)

// Options configures a Machine.
type Options struct {
	ClientID string
	Codec    *protocol.Codec // defaults to the public channels, unsigned
	Policy   policy.Policy   // defaults to policy.First()

	// ReplyDelay is the minimum wait between the opponent's move (or the
	// start of a game) and our move.
	ReplyDelay time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Archive archive.Store

	AutoChallenge bool // challenge one reply delay after subscribing
	Rechallenge   bool // challenge again after each game
	NonceMemory   int
}

type command int

const (
	cmdChallenge command = iota
)

// replyToken identifies the position a scheduled reply was meant for.
type replyToken struct {
	sessionID string
	moves     int
}

// Machine is the session state machine.
type Machine struct {
	bus   transport.Bus
	opts  Options
	codec *protocol.Codec
	log   *zap.Logger
	stats *metrics.Metrics

	mu      sync.RWMutex
	session engine.GameSession

	// Owned by Run.
	record *archive.Record
	seen   *nonceSet

	commands chan command
	due      chan replyToken
	stop     chan struct{}
	ready    chan struct{}
	saves    sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a machine on bus. The machine does nothing until Run.
func New(bus transport.Bus, opts Options) (*Machine, error) {
	if bus == nil {
		return nil, errors.New("session: nil bus")
	}
	if opts.ClientID == "" {
		return nil, errors.New("session: empty client id")
	}
	if opts.Codec == nil {
		opts.Codec = protocol.NewCodec(protocol.DefaultPrefix, "")
	}
	if opts.Policy == nil {
		opts.Policy = policy.First()
	}
	if opts.ReplyDelay <= 0 {
		opts.ReplyDelay = DefaultReplyDelay
	}
	if opts.NonceMemory <= 0 {
		opts.NonceMemory = DefaultNonceMemory
	}

	return &Machine{
		bus:      bus,
		opts:     opts,
		codec:    opts.Codec,
		log:      logger.OrNop(opts.Logger).With(zap.String("client", opts.ClientID)),
		stats:    opts.Metrics,
		session:  engine.Reset(),
		seen:     newNonceSet(opts.NonceMemory),
		commands: make(chan command, 4),
		due:      make(chan replyToken),
		stop:     make(chan struct{}),
		ready:    make(chan struct{}),
		subs:     make(map[int]chan Event),
	}, nil
}

// ClientID returns the local client id.
func (m *Machine) ClientID() string {
	return m.opts.ClientID
}

// Snapshot returns a copy of the current session.
func (m *Machine) Snapshot() engine.GameSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Ready is closed once Run has subscribed to every channel.
func (m *Machine) Ready() <-chan struct{} {
	return m.ready
}

// Challenge asks Run to publish a challenge. It is ignored while a game
// is in progress.
func (m *Machine) Challenge() {
	select {
	case m.commands <- cmdChallenge:
	default:
	}
}

// Run subscribes to the game channels and handles messages until ctx is
// cancelled or the bus closes its delivery stream. Message faults are
// logged and never end Run. Run must be called at most once.
func (m *Machine) Run(ctx context.Context) error {
	defer m.saves.Wait()
	defer close(m.stop)

	for _, ch := range m.codec.Channels.All() {
		if err := m.bus.Subscribe(ctx, ch); err != nil {
			return fmt.Errorf("subscribing to %s: %w", ch, err)
		}
	}
	m.clearRetained(ctx)
	close(m.ready)
	m.log.Info("session machine started", zap.Strings("channels", m.codec.Channels.All()))

	// Retained messages delivered by the subscriptions are handled while
	// still Idle, so a stale acceptance cannot answer our challenge.
	if m.opts.AutoChallenge {
		m.challengeAfter(m.opts.ReplyDelay)
	}

	deliveries := m.bus.Deliveries()
	for {
		select {
		case <-ctx.Done():
			m.abandon()
			return nil
		case d, ok := <-deliveries:
			if !ok {
				m.abandon()
				return transport.ErrClosed
			}
			m.handle(ctx, d)
		case cmd := <-m.commands:
			if cmd == cmdChallenge {
				m.challenge(ctx)
			}
		case tok := <-m.due:
			m.reply(ctx, tok)
		}
	}
}

// handle decodes and dispatches one delivery.
func (m *Machine) handle(ctx context.Context, d transport.Delivery) {
	m.stats.MessageIn(d.Channel)

	msg, err := m.codec.Decode(d.Channel, d.Payload)
	if errors.Is(err, protocol.ErrEmptyPayload) {
		return
	}
	if err != nil {
		m.drop(dropParseFault, zap.String("channel", d.Channel), zap.Error(err))
		return
	}
	if msg.Sender != "" && msg.Sender == m.opts.ClientID {
		m.stats.Drop(dropSelf)
		return
	}
	m.log.Debug("message received",
		zap.Stringer("kind", msg.Kind),
		zap.String("sender", msg.Sender),
		zap.Int("move", msg.Seq))

	switch msg.Kind {
	case protocol.KindChallenge:
		m.onChallenge(ctx, msg)
	case protocol.KindChallengeAccepted:
		m.onChallengeAccepted(ctx, msg)
	case protocol.KindMove:
		m.onMove(msg)
	case protocol.KindDraw:
		m.onDraw(msg)
	}
}

func (m *Machine) onChallenge(ctx context.Context, msg protocol.Message) {
	s := m.Snapshot()
	switch s.Phase {
	case engine.Idle, engine.Challenging, engine.Ended:
	default:
		if msg.Sender != s.Opponent {
			m.drop(dropBusy, zap.String("sender", msg.Sender), zap.Stringer("phase", s.Phase))
		}
		return
	}

	accept := protocol.Message{
		Kind:   protocol.KindChallengeAccepted,
		Seq:    1,
		Nonce:  protocol.NewNonce(),
		Sender: m.opts.ClientID,
	}
	if !m.publish(ctx, accept, true) {
		return
	}
	m.bind(msg.Sender)
	m.clearChannel(ctx, m.codec.Channels.Challenge)
}

func (m *Machine) onChallengeAccepted(ctx context.Context, msg protocol.Message) {
	s := m.Snapshot()
	if s.Phase != engine.Challenging {
		if s.Opponent != msg.Sender {
			m.log.Debug("acceptance ignored", zap.String("sender", msg.Sender), zap.Stringer("phase", s.Phase))
			return
		}
		// Both sides accepted each other's challenge.
		if s.Phase == engine.Playing {
			m.clearChannel(ctx, m.codec.Channels.ChallengeAccepted)
		}
		return
	}
	m.bind(msg.Sender)
	m.clearRetained(ctx)
}

// bind starts a game against opponent.
func (m *Machine) bind(opponent string) {
	prev := m.Snapshot()

	s := engine.Reset()
	s.SessionID = prev.SessionID
	if prev.Phase != engine.Challenging || s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	s.Opponent = opponent
	s.Self = RoleFor(m.opts.ClientID, opponent)
	s.Phase = engine.Accepted
	m.seen.Reset()
	m.commit(s)

	one, two := m.opts.ClientID, opponent
	if s.Self == engine.PlayerTwo {
		one, two = two, one
	}
	m.record = archive.NewRecord(s.SessionID, one, two, s.Self)

	s.Phase = engine.Playing
	m.commit(s)
	m.log.Info("game started",
		zap.String("session", s.SessionID),
		zap.String("opponent", opponent),
		zap.Stringer("role", s.Self))

	if s.Current == s.Self {
		m.schedule(s)
	}
}

// RoleFor returns the role of self against opponent: the lower id plays
// first.
func RoleFor(self, opponent string) engine.Player {
	if self < opponent {
		return engine.PlayerOne
	}
	return engine.PlayerTwo
}

func (m *Machine) onMove(msg protocol.Message) {
	s := m.Snapshot()
	if s.Phase != engine.Playing {
		m.drop(dropNotPlaying, zap.String("sender", msg.Sender), zap.Stringer("phase", s.Phase))
		return
	}
	if msg.Sender != s.Opponent {
		m.drop(dropForeignSender, zap.String("sender", msg.Sender))
		return
	}
	if !m.seen.Add(msg.Nonce) {
		m.drop(dropDuplicate, zap.String("nonce", msg.Nonce))
		return
	}

	opp := s.Self.Other()
	next, outcome, err := engine.Place(s, opp, msg.Class, msg.Column)
	if err != nil {
		m.drop(dropIllegalMove,
			zap.String("sender", msg.Sender),
			zap.Int("col", msg.Column),
			zap.Stringer("type", msg.Class),
			zap.Error(err))
		return
	}
	if outcome.Kind == engine.Fault {
		m.end(next, archive.ResultFault, outcome.Reason, engine.NoPlayer)
		return
	}

	m.record.AddMove(s, opp, engine.Action{Column: msg.Column, Class: msg.Class})
	m.applied(next, opp, msg.Seq, msg.Column, msg.Class)
}

// applied commits a placed move and decides what happens next.
func (m *Machine) applied(next engine.GameSession, p engine.Player, seq, col int, class engine.PieceClass) {
	m.commit(next)

	e := newEvent(EventMove, next)
	e.Player = p.String()
	e.Seq = seq
	e.Column = col
	e.Class = class.String()
	m.emit(e)

	if w, ok := engine.Winner(next.Board); ok {
		m.end(next, archive.ResultWin, "", w)
		return
	}
	if len(engine.LegalActions(next)) == 0 {
		m.end(next, archive.ResultNoMoves, "", engine.NoPlayer)
		return
	}
	if next.Current == next.Self {
		m.schedule(next)
	}
}

func (m *Machine) onDraw(msg protocol.Message) {
	s := m.Snapshot()
	if s.Phase == engine.Ended {
		return
	}
	bound := s.Phase == engine.Accepted || s.Phase == engine.Playing
	if bound && msg.Sender != "" && msg.Sender != s.Opponent {
		m.drop(dropForeignSender, zap.String("sender", msg.Sender))
		return
	}
	m.log.Info("draw received", zap.String("sender", msg.Sender))
	m.end(s, archive.ResultDraw, "", engine.NoPlayer)
}

// schedule arranges a reply for position s after the reply delay.
func (m *Machine) schedule(s engine.GameSession) {
	tok := replyToken{sessionID: s.SessionID, moves: s.Moves}
	time.AfterFunc(m.opts.ReplyDelay, func() {
		select {
		case m.due <- tok:
		case <-m.stop:
		}
	})
}

// reply chooses and publishes our move if the position is still the one
// the reply was scheduled for.
func (m *Machine) reply(ctx context.Context, tok replyToken) {
	s := m.Snapshot()
	if s.Phase != engine.Playing || s.SessionID != tok.sessionID || s.Moves != tok.moves || s.Current != s.Self {
		m.log.Debug("stale reply discarded", zap.String("session", tok.sessionID), zap.Int("moves", tok.moves))
		return
	}

	a, ok := m.chooseAction(ctx, s)
	if !ok {
		m.end(s, archive.ResultNoMoves, "", engine.NoPlayer)
		return
	}

	next, outcome, err := engine.Place(s, s.Self, a.Class, a.Column)
	if err != nil {
		m.log.Error("placing chosen action", zap.Stringer("action", a), zap.Error(err))
		return
	}
	if outcome.Kind == engine.Fault {
		m.end(next, archive.ResultFault, outcome.Reason, engine.NoPlayer)
		return
	}

	msg := protocol.Message{
		Kind:   protocol.KindMove,
		Seq:    next.Moves,
		Nonce:  protocol.NewNonce(),
		Sender: m.opts.ClientID,
		Column: a.Column,
		Class:  a.Class,
		Color:  protocol.ColorFor(s.Self, a.Class),
	}
	if !m.publish(ctx, msg, false) {
		return
	}
	m.seen.Add(msg.Nonce)
	m.record.AddMove(s, s.Self, a)
	m.applied(next, s.Self, msg.Seq, a.Column, a.Class)
}

// chooseAction runs the policy. An invalid or illegal choice falls back
// to the lowest legal action; ok is false when there is none.
func (m *Machine) chooseAction(ctx context.Context, s engine.GameSession) (engine.Action, bool) {
	id, took, err := policy.Choose(ctx, m.opts.Policy, engine.Encode(s))
	m.stats.ObservePolicy(took)

	var a engine.Action
	if err == nil {
		a, _ = engine.DecodeAction(id)
		if !engine.IsLegal(s, s.Self, a.Class, a.Column) {
			err = fmt.Errorf("%w: %s", engine.ErrIllegalMove, a)
		}
	}
	if err == nil {
		return a, true
	}

	legal := engine.LegalActions(s)
	if len(legal) == 0 {
		return engine.Action{}, false
	}
	a, _ = engine.DecodeAction(legal[0])
	m.drop(dropInvalidAction, zap.Int("action", id), zap.Stringer("fallback", a), zap.Error(err))
	return a, true
}

// challenge starts a fresh session and announces it.
func (m *Machine) challenge(ctx context.Context) {
	s := m.Snapshot()
	if s.Phase == engine.Accepted || s.Phase == engine.Playing {
		m.log.Debug("challenge skipped, game in progress", zap.String("session", s.SessionID))
		return
	}

	next := engine.Reset()
	next.SessionID = uuid.NewString()
	next.Phase = engine.Challenging
	m.commit(next)

	m.publish(ctx, protocol.Message{
		Kind:   protocol.KindChallenge,
		Seq:    1,
		Nonce:  protocol.NewNonce(),
		Sender: m.opts.ClientID,
	}, true)
}

// end moves the session to Ended and archives the record of a bound game.
func (m *Machine) end(s engine.GameSession, result archive.Result, reason string, winner engine.Player) {
	s.Phase = engine.Ended
	m.commit(s)

	e := newEvent(EventEnd, s)
	e.Result = string(result)
	e.Reason = reason
	if winner.Valid() {
		e.Player = winner.String()
	}
	m.emit(e)

	m.log.Info("game ended",
		zap.String("session", s.SessionID),
		zap.String("result", string(result)),
		zap.String("reason", reason),
		zap.Stringer("winner", winner),
		zap.Int("moves", s.Moves))

	if m.record != nil {
		m.stats.GameFinished(string(result))
		m.record.Finish(s, result, reason, winner)
		m.save(m.record)
		m.record = nil
	}

	if m.opts.Rechallenge {
		m.challengeAfter(m.opts.ReplyDelay)
	}
}

// challengeAfter queues a challenge once d has passed, unless Run has
// returned by then.
func (m *Machine) challengeAfter(d time.Duration) {
	time.AfterFunc(d, func() {
		select {
		case <-m.stop:
		default:
			m.Challenge()
		}
	})
}

// abandon archives a game interrupted by shutdown.
func (m *Machine) abandon() {
	if m.record == nil {
		return
	}
	s := m.Snapshot()
	m.record.Finish(s, archive.ResultAbandoned, "", engine.NoPlayer)
	m.save(m.record)
	m.record = nil
}

func (m *Machine) save(r *archive.Record) {
	if m.opts.Archive == nil {
		return
	}
	m.saves.Add(1)
	go func() {
		defer m.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.opts.Archive.Save(ctx, r); err != nil {
			m.log.Warn("archiving game failed", zap.String("session", r.SessionID), zap.Error(err))
		}
	}()
}

// commit replaces the session, reporting phase changes.
func (m *Machine) commit(s engine.GameSession) {
	m.mu.Lock()
	prev := m.session.Phase
	m.session = s
	m.mu.Unlock()

	if prev == s.Phase {
		return
	}
	m.stats.Transition(s.Phase.String())
	m.log.Info("session transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", s.Phase),
		zap.String("session", s.SessionID),
		zap.String("position", positionid.PositionID(s)))
	m.emit(newEvent(EventTransition, s))
}

// publish encodes and sends msg. Failures are logged and not retried.
func (m *Machine) publish(ctx context.Context, msg protocol.Message, retained bool) bool {
	channel, payload, err := m.codec.Encode(msg)
	if err != nil {
		m.drop(dropPublish, zap.Stringer("kind", msg.Kind), zap.Error(err))
		return false
	}
	if err := m.bus.Publish(ctx, channel, payload, retained); err != nil {
		m.drop(dropPublish, zap.String("channel", channel), zap.Error(err))
		return false
	}
	m.stats.MessageOut(channel)
	m.log.Debug("message published",
		zap.String("channel", channel),
		zap.Int("move", msg.Seq),
		zap.Bool("retained", retained))
	return true
}

// clearRetained empties the retained handshake channels.
func (m *Machine) clearRetained(ctx context.Context) {
	m.clearChannel(ctx, m.codec.Channels.Challenge)
	m.clearChannel(ctx, m.codec.Channels.ChallengeAccepted)
}

// clearChannel removes the retained message of a channel.
func (m *Machine) clearChannel(ctx context.Context, channel string) {
	if err := m.bus.Publish(ctx, channel, nil, true); err != nil {
		m.log.Warn("clearing retained channel", zap.String("channel", channel), zap.Error(err))
	}
}

func (m *Machine) drop(reason string, fields ...zap.Field) {
	m.stats.Drop(reason)
	m.log.Warn("message dropped", append([]zap.Field{zap.String("reason", reason)}, fields...)...)
}
