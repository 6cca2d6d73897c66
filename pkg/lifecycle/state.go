package lifecycle

// State is a point-in-time view of a manager's phase bookkeeping.
type State struct {
	Current   string
	Executing string
	Completed []string

	LastExecuted string
	LastFailed   bool
}

// State returns a snapshot of the manager's phase bookkeeping.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Current:   m.current,
		Executing: m.executing,
		Completed: append([]string(nil), m.completed...),

		LastExecuted: m.lastExecuted,
		LastFailed:   m.lastFailed,
	}
}

func (s State) completed(name string) bool {
	for _, c := range s.Completed {
		if c == name {
			return true
		}
	}
	return false
}

func (s State) IsInitialised() bool  { return s.completed(Initialise) }
func (s State) IsInitialising() bool { return s.Executing == Initialise }
func (s State) IsStarted() bool      { return s.Current == Start }
func (s State) IsStarting() bool     { return s.Executing == Start }
func (s State) IsStopped() bool      { return s.Current == Stop }
func (s State) IsStopping() bool     { return s.Executing == Stop }
func (s State) IsDisposed() bool     { return s.Current == Dispose }
func (s State) IsDisposing() bool    { return s.Executing == Dispose }

// IsStartFailed reports whether the last start attempt failed part way.
func (s State) IsStartFailed() bool { return s.LastExecuted == Start && s.LastFailed }

// IsPhaseComplete reports whether name is in the completed set.
func (s State) IsPhaseComplete(name string) bool { return s.completed(name) }
