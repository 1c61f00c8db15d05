package propsync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/property"
)

// State is the synchronization state of one subscribed property.
type State int

const (
	Idle State = iota
	PushingOut
	AwaitingEcho
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PushingOut:
		return "pushing_out"
	case AwaitingEcho:
		return "awaiting_echo"
	default:
		return "unknown"
	}
}

// maxRepush bounds how often a property is pushed again when it changes
// while its previous push is still in flight.
const maxRepush = 1

// Sink delivers updates to the peer. Push may be called from any goroutine
// that changes a subscribed property.
type Sink interface {
	Push(u Update) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update) error

func (f SinkFunc) Push(u Update) error { return f(u) }

// Resolver finds properties by path. *network.Network satisfies it.
type Resolver interface {
	Property(path string) (property.Property, error)
}

// Stats counts synchronizer traffic.
type Stats struct {
	Pushed         int
	Applied        int
	EchoesConsumed int
}

type entry struct {
	path  string
	prop  property.Property
	owner property.Owner
	ids   []string
	state State

	echoed bool
	again  bool
}

// Synchronizer keeps subscribed properties and a peer in step.
type Synchronizer struct {
	resolver Resolver
	sink     Sink
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	byProp  map[property.Property]*entry
	owners  map[property.Owner]int
	stats   Stats
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// New creates a Synchronizer that resolves paths with r and pushes to sink.
func New(r Resolver, sink Sink, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		resolver: r,
		sink:     sink,
		logger:   slog.Default(),
		entries:  make(map[string]*entry),
		byProp:   make(map[property.Property]*entry),
		owners:   make(map[property.Owner]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts mirroring the property at path under widget id and
// returns its current value. Subscribing the same id twice is a no-op.
func (s *Synchronizer) Subscribe(path, id string) (ir.Value, error) {
	p, err := s.resolver.Property(path)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	s.mu.Lock()
	e, ok := s.entries[path]
	if !ok {
		e = &entry{path: path, prop: p, owner: p.Owner()}
		s.entries[path] = e
		s.byProp[p] = e
		p.AddObserver(s)
		if e.owner != nil {
			if s.owners[e.owner] == 0 {
				e.owner.AddOwnerObserver(s)
			}
			s.owners[e.owner]++
		}
	}
	if !slices.Contains(e.ids, id) {
		e.ids = append(e.ids, id)
	}
	s.mu.Unlock()

	s.logger.Debug("subscribed", "path", path, "id", id)
	return p.Value(), nil
}

// Unsubscribe drops widget id from path. The property stops being observed
// once its last id is gone.
func (s *Synchronizer) Unsubscribe(path, id string) error {
	s.mu.Lock()
	e, ok := s.entries[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unsubscribe %s: %w", path, ErrNotSubscribed)
	}
	e.ids = slices.DeleteFunc(e.ids, func(x string) bool { return x == id })
	var done *entry
	if len(e.ids) == 0 {
		done = s.dropLocked(e)
	}
	s.mu.Unlock()

	if done != nil {
		s.release(done)
	}
	return nil
}

// Set applies a value received from the peer.
//
// While the property is PushingOut or AwaitingEcho the value is the echo
// of our push and is consumed. Unsubscribed paths are applied directly.
func (s *Synchronizer) Set(path string, v ir.Value) error {
	s.mu.Lock()
	e, ok := s.entries[path]
	if ok {
		switch e.state {
		case PushingOut:
			e.echoed = true
			s.stats.EchoesConsumed++
			s.mu.Unlock()
			return nil
		case AwaitingEcho:
			e.state = Idle
			s.stats.EchoesConsumed++
			s.mu.Unlock()
			return nil
		}
	}
	s.stats.Applied++
	s.mu.Unlock()

	p, err := s.resolver.Property(path)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := p.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Get returns the current value at path.
func (s *Synchronizer) Get(path string) (ir.Value, error) {
	p, err := s.resolver.Property(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return p.Value(), nil
}

// State reports the synchronization state of path; Idle if unsubscribed.
func (s *Synchronizer) State(path string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[path]; ok {
		return e.state
	}
	return Idle
}

// Subscriptions returns the subscribed paths, sorted.
func (s *Synchronizer) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.entries))
}

func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close drops every subscription.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	var done []*entry
	for _, path := range slices.Sorted(maps.Keys(s.entries)) {
		done = append(done, s.dropLocked(s.entries[path]))
	}
	s.mu.Unlock()
	for _, e := range done {
		s.release(e)
	}
}

// Handle executes one command.
func (s *Synchronizer) Handle(cmd Command) Response {
	resp := Response{Command: cmd.Command, Path: cmd.Path, ID: cmd.ID}
	var err error
	switch cmd.Command {
	case CmdSubscribe:
		var v ir.Value
		if v, err = s.Subscribe(cmd.Path, cmd.ID); err == nil {
			resp.Value = encodeValue(v)
		}
	case CmdUnsubscribe:
		err = s.Unsubscribe(cmd.Path, cmd.ID)
	case CmdSet:
		var v ir.Value
		if v, err = decodeValue(cmd.Value); err == nil {
			err = s.Set(cmd.Path, v)
		}
	case CmdGet:
		var v ir.Value
		if v, err = s.Get(cmd.Path); err == nil {
			resp.Value = encodeValue(v)
		}
	default:
		err = fmt.Errorf("%q: %w", cmd.Command, ErrUnknownCommand)
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	return resp
}

// HandleJSON decodes a command, executes it and encodes the response.
func (s *Synchronizer) HandleJSON(data []byte) ([]byte, error) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s.Handle(cmd))
}

// OnChange implements property.Observer.
func (s *Synchronizer) OnChange(p property.Property) {
	s.mu.Lock()
	e, ok := s.byProp[p]
	if !ok {
		s.mu.Unlock()
		return
	}
	if e.state == PushingOut {
		e.again = true
		s.mu.Unlock()
		return
	}
	e.state = PushingOut
	e.echoed = false
	s.mu.Unlock()

	for round := 0; ; round++ {
		s.push(e, CmdUpdate, p.Value())

		s.mu.Lock()
		if e.again && round < maxRepush {
			e.again = false
			s.mu.Unlock()
			continue
		}
		e.again = false
		if e.echoed {
			e.state = Idle
		} else {
			e.state = AwaitingEcho
		}
		s.mu.Unlock()
		return
	}
}

func (s *Synchronizer) push(e *entry, command string, v ir.Value) {
	s.mu.Lock()
	ids := slices.Clone(e.ids)
	s.mu.Unlock()

	var raw json.RawMessage
	if v != nil {
		raw = encodeValue(v)
	}
	for _, id := range ids {
		if err := s.sink.Push(Update{Command: command, Path: e.path, ID: id, Value: raw}); err != nil {
			s.logger.Warn("push failed", "path", e.path, "id", id, "error", err)
			continue
		}
		s.mu.Lock()
		s.stats.Pushed++
		s.mu.Unlock()
	}
}

// OnDidAddProperty implements property.OwnerObserver.
func (s *Synchronizer) OnDidAddProperty(property.Owner, property.Property, int) {}

// OnWillRemoveProperty implements property.OwnerObserver. The property is
// still attached, so its path is valid for the removal notice.
func (s *Synchronizer) OnWillRemoveProperty(_ property.Owner, p property.Property, _ int) {
	s.mu.Lock()
	e, ok := s.byProp[p]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.push(e, CmdRemoved, nil)

	s.mu.Lock()
	done := s.dropLocked(e)
	s.mu.Unlock()
	if done != nil {
		s.release(done)
	}
	s.logger.Debug("subscription dropped", "path", e.path, "reason", "property removed")
}

// OnDidRemoveProperty implements property.OwnerObserver.
func (s *Synchronizer) OnDidRemoveProperty(property.Owner, property.Property, int) {}

// dropLocked forgets e and returns it for release, or nil if it was already
// dropped.
func (s *Synchronizer) dropLocked(e *entry) *entry {
	if s.entries[e.path] != e {
		return nil
	}
	delete(s.entries, e.path)
	delete(s.byProp, e.prop)
	if e.owner != nil {
		s.owners[e.owner]--
		if s.owners[e.owner] > 0 {
			e.owner = nil
		} else {
			delete(s.owners, e.owner)
		}
	}
	return e
}

// release detaches observers. e.owner is non-nil only when e was the last
// subscription under it.
func (s *Synchronizer) release(e *entry) {
	e.prop.RemoveObserver(s)
	if e.owner != nil {
		e.owner.RemoveOwnerObserver(s)
	}
}

var (
	_ property.Observer      = (*Synchronizer)(nil)
	_ property.OwnerObserver = (*Synchronizer)(nil)
)
