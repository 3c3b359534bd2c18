package refreshguard

// Claims is returned by [Manager.ValidateAccess]. It carries the verified
// principal, the session the token belongs to, and the token's time bounds
// as UTC epoch seconds.
type Claims struct {
	Principal string
	SessionID string
	IssuedAt  int64
	ExpiresAt int64
}

// TokenPair is returned by [Manager.IssueWithResult] and
// [Manager.RefreshWithResult]. AccessToken is a signed, self-contained JWT;
// RefreshToken is the opaque identifier of the active refresh-token record
// and is the only credential the client must durably store.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	Principal    string
}

// Audit event types emitted by the manager.
const (
	// AuditEventIssue is an exported constant or variable used by the session core.
	AuditEventIssue = "issue"
	// AuditEventRefresh is an exported constant or variable used by the session core.
	AuditEventRefresh = "refresh"
	// AuditEventRefreshReuse is an exported constant or variable used by the session core.
	AuditEventRefreshReuse = "refresh_reuse"
	// AuditEventRevoke is an exported constant or variable used by the session core.
	AuditEventRevoke = "revoke"
	// AuditEventSweep is an exported constant or variable used by the session core.
	AuditEventSweep = "sweep"
)
