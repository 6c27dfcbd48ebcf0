package main

import (
	"context"
	"fmt"
	"time"

	"github.com/on-the-ground/skadi_go/log"
	"github.com/on-the-ground/skadi_go/store"
)

const allMoviesKey = "movies:all"

// LoadMoviesUseCase reads the catalog behind a simulated network delay and
// caches the result.
type LoadMoviesUseCase struct {
	catalog *Catalog
	cache   *MovieCache
	delay   time.Duration
}

func NewLoadMoviesUseCase(catalog *Catalog, cache *MovieCache, delay time.Duration) *LoadMoviesUseCase {
	return &LoadMoviesUseCase{catalog: catalog, cache: cache, delay: delay}
}

func (u *LoadMoviesUseCase) Execute(ctx context.Context, fresh bool) ([]Movie, error) {
	if !fresh {
		if movies, ok := u.cache.Get(allMoviesKey); ok {
			log.Eff(ctx, log.LogDebug, "movies served from cache", map[string]interface{}{
				"count": len(movies),
			})
			return movies, nil
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(u.delay):
	}

	movies, err := u.catalog.All()
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	if !u.cache.Set(allMoviesKey, movies) {
		log.Eff(ctx, log.LogWarn, "movies not cached", map[string]interface{}{
			"count": len(movies),
		})
	}
	return movies, nil
}

func handleAction(useCase *LoadMoviesUseCase) store.ActionHandler[Action, Change] {
	return func(ctx context.Context, action Action) (Change, error) {
		switch action := action.(type) {
		case LoadMovies:
			movies, err := useCase.Execute(ctx, action.Fresh)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				return LoadFailed{Reason: err.Error()}, nil
			}
			return MoviesLoaded{Movies: movies}, nil
		default:
			panic(fmt.Sprintf("unknown action %T", action))
		}
	}
}
