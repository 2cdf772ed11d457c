package domain

// Identity is the authenticated subject baked into a session token at
// issuance. It is immutable and never re-derived from store state after
// the token is minted.
type Identity struct {
	SubjectID string
	Role      Role
}

// IsZero reports whether no subject has been authenticated.
func (i Identity) IsZero() bool {
	return i.SubjectID == "" && i.Role == ""
}
