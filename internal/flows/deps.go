package flows

// Deps groups flow dependency sets. The root manager builds this once and
// delegates lifecycle methods to the matching flow implementation.
type Deps struct {
	Issue   IssueDeps
	Refresh RefreshDeps
	Revoke  RevokeDeps
}
