package service

import (
	"context"

	id "landtrust/pkg/domain"
)

// RequestResolver adapts Service to the auth middleware's UserResolver.
type RequestResolver struct {
	svc *Service
}

func NewRequestResolver(svc *Service) *RequestResolver {
	return &RequestResolver{svc: svc}
}

func (r *RequestResolver) Resolve(ctx context.Context, ident *id.ExternalIdentity) (*id.ResolvedUser, error) {
	user, err := r.svc.Resolve(ctx, ident)
	if err != nil || user == nil {
		return nil, err
	}
	return user.Resolved(), nil
}
