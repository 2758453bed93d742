package car

import (
	"context"

	"github.com/lucaswhitaker22/specracer-engine-go/pkg/model"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/repository"
	"github.com/lucaswhitaker22/specracer-engine-go/pkg/utils/cache"
)

// Catalog serves car specifications from the relational store, cached
// indefinitely since specifications are immutable reference data.
// It satisfies the simulator's CarCatalog.
type Catalog struct {
	cache *cache.LoaderCache[string, model.CarSpecification]
}

func NewCatalog(conn repository.Querier) *Catalog {
	return &Catalog{
		cache: cache.NewLoaderCache(
			func(ctx context.Context, carID string) (*model.CarSpecification, error) {
				return LoadByID(ctx, conn, carID)
			}),
	}
}

func (c *Catalog) Spec(carID string) (*model.CarSpecification, error) {
	return c.cache.Get(context.Background(), carID)
}
