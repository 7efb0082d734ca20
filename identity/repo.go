package identity

// Repo holds the active session. At most one session is active per engine
// instance; Bind replaces any existing one.
type Repo interface {
	Bind(session *Session) error
	Current() (*Session, bool)
	Clear() error
}
