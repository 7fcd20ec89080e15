package authorization

import "context"

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
	// IsPrivileged reports whether the actor may act on any seller's boosts.
	IsPrivileged(ctx context.Context, actor Actor) bool
}
