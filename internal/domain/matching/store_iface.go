package matching

import (
	"context"

	"refpay/internal/domain/referees"
)

type StoreAPI interface {
	ListMappings(ctx context.Context) ([]Mapping, error)
	GetMapping(ctx context.Context, key string) (Mapping, error)
	UpsertMapping(ctx context.Context, mapping Mapping) error
	DeleteMapping(ctx context.Context, key string) error
	DeleteOrphanMappings(ctx context.Context) (int64, error)
}

// RegistryReader supplies the ordered registry snapshot the resolver scores against.
type RegistryReader interface {
	ListReferees(ctx context.Context) ([]referees.Referee, error)
}
