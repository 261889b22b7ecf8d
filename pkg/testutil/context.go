package testutil

import (
	"net/http"

	id "landtrust/pkg/domain"
	"landtrust/pkg/requestcontext"
)

// WithIdentity attaches a verified external identity, as the authentication
// middleware would.
func WithIdentity(req *http.Request, identity *id.ExternalIdentity) *http.Request {
	return req.WithContext(requestcontext.WithIdentity(req.Context(), identity))
}

// WithUser attaches both an identity and its resolved user. This is the
// typical state for a signed-in request that has passed ResolveUser.
func WithUser(req *http.Request, userID id.UserID, email string) *http.Request {
	ctx := requestcontext.WithIdentity(req.Context(), &id.ExternalIdentity{
		Subject: "sub_" + userID.String(),
		Email:   email,
	})
	ctx = requestcontext.WithUser(ctx, userID, email)
	return req.WithContext(ctx)
}
