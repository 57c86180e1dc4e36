package capture

// State of a capture session
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateFinalized State = "finalized"
	StateErrored   State = "errored"
)

type trigger string

const (
	triggerStart  trigger = "start"
	triggerResult trigger = "result"
	triggerError  trigger = "error"
	triggerEnd    trigger = "end"
)

// transitions lists every legal move. Anything missing is ignored.
var transitions = map[State]map[trigger]State{
	StateIdle: {
		triggerStart: StateListening,
	},
	StateListening: {
		triggerResult: StateListening,
		triggerError:  StateErrored,
		triggerEnd:    StateFinalized,
	},
	StateFinalized: {
		triggerStart: StateListening,
	},
	StateErrored: {
		triggerStart: StateListening,
		triggerEnd:   StateErrored,
	},
}

func next(from State, t trigger) (State, bool) {
	to, ok := transitions[from][t]
	return to, ok
}
