package domain

// ExternalIdentity is the assertion made by the identity provider for the
// current request. It is not trusted to match any internal record until the
// identity resolver has linked it to a User.
type ExternalIdentity struct {
	Subject   string
	Issuer    string
	Email     string
	FirstName string
	LastName  string
}

// Actor describes who performed an administrative action, for audit records.
type Actor struct {
	UserID UserID
	Email  string
}

func (a Actor) String() string {
	if a.Email != "" {
		return a.Email
	}
	if !a.UserID.IsNil() {
		return a.UserID.String()
	}
	return "system"
}

// ResolvedUser is the request-scoped view of an internal user.
type ResolvedUser struct {
	ID    UserID
	Email string
}
