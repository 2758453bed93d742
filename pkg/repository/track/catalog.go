package track

import (
	"context"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/repository"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/utils/cache"
)

// Catalog serves track configurations from the relational store, cached
// indefinitely since configurations are immutable reference data.
type Catalog struct {
	cache *cache.LoaderCache[string, model.TrackConfiguration]
}

func NewCatalog(conn repository.Querier) *Catalog {
	return &Catalog{
		cache: cache.NewLoaderCache(
			func(ctx context.Context, trackID string) (*model.TrackConfiguration, error) {
				return LoadByID(ctx, conn, trackID)
			}),
	}
}

func (c *Catalog) Track(ctx context.Context, trackID string) (*model.TrackConfiguration, error) {
	return c.cache.Get(ctx, trackID)
}
