package state

// ScriptScheduler consumes the queued script events predicted for a boot,
// preserving trigger order and recording which scripts have been handed
// out.
type ScriptScheduler struct {
	pending []ScriptEvent
	history []ScriptEvent
}

// NewScriptScheduler seeds a scheduler from the engine state's queue.
func NewScriptScheduler(engine *EngineState) *ScriptScheduler {
	pending := make([]ScriptEvent, len(engine.QueuedScripts))
	copy(pending, engine.QueuedScripts)
	return &ScriptScheduler{pending: pending}
}

// Next pops the next queued script, or false when the queue is drained.
func (s *ScriptScheduler) Next() (ScriptEvent, bool) {
	if len(s.pending) == 0 {
		return ScriptEvent{}, false
	}
	event := s.pending[0]
	s.pending = s.pending[1:]
	s.history = append(s.history, event)
	return event, true
}

// Peek returns the next queued script without consuming it.
func (s *ScriptScheduler) Peek() (ScriptEvent, bool) {
	if len(s.pending) == 0 {
		return ScriptEvent{}, false
	}
	return s.pending[0], true
}

func (s *ScriptScheduler) Len() int      { return len(s.pending) }
func (s *ScriptScheduler) IsEmpty() bool { return len(s.pending) == 0 }

// Pending returns the scripts still waiting to run, in order.
func (s *ScriptScheduler) Pending() []ScriptEvent {
	out := make([]ScriptEvent, len(s.pending))
	copy(out, s.pending)
	return out
}

// History returns every script already handed out, in consumption order.
func (s *ScriptScheduler) History() []ScriptEvent {
	out := make([]ScriptEvent, len(s.history))
	copy(out, s.history)
	return out
}

// MovieQueue consumes the queued fullscreen movie events in trigger order.
type MovieQueue struct {
	pending []MovieEvent
	history []MovieEvent
}

// NewMovieQueue seeds a queue from the engine state's movie events.
func NewMovieQueue(engine *EngineState) *MovieQueue {
	pending := make([]MovieEvent, len(engine.QueuedMovies))
	copy(pending, engine.QueuedMovies)
	return &MovieQueue{pending: pending}
}

// Next pops the next queued movie, or false when the queue is drained.
func (q *MovieQueue) Next() (MovieEvent, bool) {
	if len(q.pending) == 0 {
		return MovieEvent{}, false
	}
	event := q.pending[0]
	q.pending = q.pending[1:]
	q.history = append(q.history, event)
	return event, true
}

// Peek returns the next queued movie without consuming it.
func (q *MovieQueue) Peek() (MovieEvent, bool) {
	if len(q.pending) == 0 {
		return MovieEvent{}, false
	}
	return q.pending[0], true
}

func (q *MovieQueue) Len() int      { return len(q.pending) }
func (q *MovieQueue) IsEmpty() bool { return len(q.pending) == 0 }

// Pending returns the movies still waiting to play, in order.
func (q *MovieQueue) Pending() []MovieEvent {
	out := make([]MovieEvent, len(q.pending))
	copy(out, q.pending)
	return out
}

// History returns every movie already played, in consumption order.
func (q *MovieQueue) History() []MovieEvent {
	out := make([]MovieEvent, len(q.history))
	copy(out, q.history)
	return out
}
