// Package txnfsm implements the transaction state machine that
// governs when rewriting is legal within a session and how backend
// connections are acquired, cached, and returned across a
// multi-statement exchange.
package txnfsm

import (
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/observability"
)

// State is a session's transaction phase.
type State int

const (
	Dummy State = iota
	Use
	SetSession
	Start
	Prepare
)

func (s State) String() string {
	switch s {
	case Dummy:
		return "Dummy"
	case Use:
		return "Use"
	case SetSession:
		return "SetSession"
	case Start:
		return "Start"
	case Prepare:
		return "Prepare"
	default:
		return "Unknown"
	}
}

// Event is a session-scoped trigger the driver reports to the FSM.
type Event int

const (
	EventUse Event = iota
	EventSetSession
	EventQuery
	EventStart
	EventPrepare
	EventSendLongData
	EventExecute
	EventClose
	EventReset
	EventDrop
	EventCommitRollback
)

func (e Event) String() string {
	switch e {
	case EventUse:
		return "USE"
	case EventSetSession:
		return "SET_SESSION"
	case EventQuery:
		return "QUERY"
	case EventStart:
		return "START"
	case EventPrepare:
		return "PREPARE"
	case EventSendLongData:
		return "SEND_LONG_DATA"
	case EventExecute:
		return "EXECUTE"
	case EventClose:
		return "CLOSE"
	case EventReset:
		return "RESET"
	case EventDrop:
		return "DROP"
	case EventCommitRollback:
		return "COMMIT_ROLLBACK"
	default:
		return "UNKNOWN"
	}
}

type transition struct {
	event Event
	src   State
	dst   State
}

// transitions is the FSM's transition table: a flat list of (event,
// source, destination) rows scanned linearly by trigger. Keeping it
// data rather than a generated matrix keeps it small and auditable.
// An (event, source) pair with no row, such as SEND_LONG_DATA, CLOSE,
// RESET or DROP outside Prepare, is a no-op.
var transitions = []transition{
	{EventUse, Dummy, Use},
	{EventUse, Use, Use},
	{EventSetSession, Dummy, SetSession},
	{EventSetSession, Use, SetSession},
	{EventSetSession, SetSession, SetSession},
	{EventQuery, Dummy, Dummy},
	{EventQuery, Use, Use},
	{EventQuery, SetSession, SetSession},
	{EventQuery, SetSession, Dummy},
	{EventStart, Dummy, Start},
	{EventStart, Use, Start},
	{EventStart, SetSession, Start},
	{EventPrepare, Dummy, Prepare},
	{EventPrepare, Use, Prepare},
	{EventPrepare, Start, Prepare},
	{EventSendLongData, Prepare, Prepare},
	{EventExecute, Prepare, Prepare},
	{EventClose, Prepare, Dummy},
	{EventReset, Prepare, Dummy},
	{EventDrop, Prepare, Dummy},
	{EventCommitRollback, Prepare, Dummy},
	{EventCommitRollback, Dummy, Dummy},
	{EventCommitRollback, Start, Dummy},
}

// FSM is owned by a single session and mutated only by that session's
// driver task; it never suspends internally. It is not safe for
// concurrent use by multiple goroutines.
type FSM struct {
	state  State
	attrs  SessionAttrs
	single *Conn
	shards []*Conn
	logger *zap.Logger
}

// SessionAttrs are the session-scoped values that travel with any
// connection the FSM acquires.
type SessionAttrs struct {
	Database   string
	Charset    string
	Autocommit bool
}

// Conn is an opaque handle to a backend connection. The pool that
// produces and reclaims these is an external collaborator; the FSM
// only tracks ownership.
type Conn struct {
	Endpoint string
	Handle   interface{}
}

// New returns an FSM in its initial Dummy state.
func New(logger *zap.Logger) *FSM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSM{state: Dummy, logger: logger}
}

// State returns the FSM's current state.
func (f *FSM) State() State {
	return f.state
}

// Attrs returns the session attributes currently bound to the FSM.
func (f *FSM) Attrs() SessionAttrs {
	return f.attrs
}

// SetAttrs updates the session attributes travelling with future
// connection acquisitions.
func (f *FSM) SetAttrs(attrs SessionAttrs) {
	f.attrs = attrs
}

// Trigger walks the transition table and advances state on the first
// matching (event, source) pair. It returns true iff the source state
// was Dummy, signaling to the caller that a fresh driver-side action
// (e.g. a new connection acquisition) is permitted. Unmatched
// (event, state) pairs are no-ops and return false.
func (f *FSM) Trigger(event Event) bool {
	src := f.state
	for _, t := range transitions {
		if t.event == event && t.src == src {
			f.state = t.dst
			observability.TxnTransitions.WithLabelValues(t.dst.String()).Inc()
			f.logger.Debug("fsm transition",
				zap.String("event", event.String()),
				zap.String("from", src.String()),
				zap.String("to", t.dst.String()),
			)
			return src == Dummy
		}
	}
	observability.TxnRejectedEvents.WithLabelValues(event.String(), src.String()).Inc()
	f.logger.Debug("fsm no-op",
		zap.String("event", event.String()),
		zap.String("state", src.String()),
	)
	return false
}

// ResetState returns the FSM to Dummy and re-triggers a QUERY event,
// used when autocommit is switched off (set to 0) mid-session and any cached
// transactional state must be discarded.
func (f *FSM) ResetState() {
	f.state = Dummy
	f.Trigger(EventQuery)
}

// TakeConn removes and returns the cached single-endpoint connection,
// leaving none behind. It reports false if no connection is cached.
func (f *FSM) TakeConn() (*Conn, bool) {
	if f.single == nil {
		return nil, false
	}
	c := f.single
	f.single = nil
	return c, true
}

// PutConn caches c as the FSM's single-endpoint connection, replacing
// any connection already cached.
func (f *FSM) PutConn(c *Conn) {
	f.single = c
}

// GetShardConn removes and returns the connection cached for shard
// idx, swapping in nil so the slot is left vacant rather than
// shrinking the slice out from under concurrent indices.
func (f *FSM) GetShardConn(idx int) (*Conn, bool) {
	if idx < 0 || idx >= len(f.shards) || f.shards[idx] == nil {
		return nil, false
	}
	c := f.shards[idx]
	f.shards[idx] = nil
	return c, true
}

// PutShardConn caches c for shard idx, growing the shard-connection
// vector as needed.
func (f *FSM) PutShardConn(idx int, c *Conn) {
	if idx >= len(f.shards) {
		grown := make([]*Conn, idx+1)
		copy(grown, f.shards)
		f.shards = grown
	}
	f.shards[idx] = c
}
