package domain

type EventType string

const (
	EventShowPrompt EventType = "show-prompt"
	EventStart      EventType = "start"
	EventPause      EventType = "pause"
	EventResume     EventType = "resume"
	EventComplete   EventType = "complete"
	EventStop       EventType = "stop"
)

// SessionEvent is a phase machine input. Reason is only meaningful for pause.
type SessionEvent struct {
	Type   EventType
	Reason PauseReason
}

func ShowPrompt() SessionEvent { return SessionEvent{Type: EventShowPrompt} }
func Start() SessionEvent { return SessionEvent{Type: EventStart} }
func Pause(reason PauseReason) SessionEvent { return SessionEvent{Type: EventPause, Reason: reason} }
func Resume() SessionEvent { return SessionEvent{Type: EventResume} }
func Complete() SessionEvent { return SessionEvent{Type: EventComplete} }
func Stop() SessionEvent { return SessionEvent{Type: EventStop} }

var allowedEvents = map[SessionPhase][]EventType{
	PhaseIdle:      {EventShowPrompt, EventStart, EventStop},
	PhasePrompting: {EventStart, EventStop},
	PhaseActive:    {EventPause, EventComplete, EventStop},
	PhasePaused:    {EventResume, EventComplete, EventStop},
	PhaseCompleted: {EventStart, EventStop},
}

var eventTargets = map[EventType]SessionPhase{
	EventShowPrompt: PhasePrompting,
	EventStart:      PhaseActive,
	EventPause:      PhasePaused,
	EventResume:     PhaseActive,
	EventComplete:   PhaseCompleted,
	EventStop:       PhaseIdle,
}

func CanTransition(phase SessionPhase, event SessionEvent) bool {
	for _, allowed := range allowedEvents[phase] {
		if allowed == event.Type {
			return true
		}
	}
	return false
}

// TransitionSessionPhase returns phase unchanged when event is not allowed.
func TransitionSessionPhase(phase SessionPhase, event SessionEvent) SessionPhase {
	if !CanTransition(phase, event) {
		return phase
	}
	if next, ok := eventTargets[event.Type]; ok {
		return next
	}
	return phase
}
