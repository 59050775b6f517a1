package domain

// SessionState tracks a client session through login and logout.
type SessionState string

const (
	SessionAnonymous      SessionState = "ANONYMOUS"
	SessionAuthenticating SessionState = "AUTHENTICATING"
	SessionAuthenticated  SessionState = "AUTHENTICATED"
)

// StoreMode names the backing store selected at startup.
type StoreMode string

const (
	StoreModeRemote StoreMode = "remote"
	StoreModeLocal  StoreMode = "local"
)
