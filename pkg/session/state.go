package session

// State is a Driver state.
type State int

const (
	StateSpawned State = iota
	StateAwaitingLogin
	StateLoggedIn
	StateLoginTimedOut
	StateProcessExited
	StateRunningCommand
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "Spawned"
	case StateAwaitingLogin:
		return "AwaitingLogin"
	case StateLoggedIn:
		return "LoggedIn"
	case StateLoginTimedOut:
		return "LoginTimedOut"
	case StateProcessExited:
		return "ProcessExited"
	case StateRunningCommand:
		return "RunningCommand"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further commands will run from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateLoginTimedOut || s == StateProcessExited
}
