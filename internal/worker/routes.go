package worker

import (
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
)

// Routes declares the worker's route table and middleware registry.
func Routes(rt *router.Router[*Deps]) error {
	if err := router.RegisterGuards(rt); err != nil {
		return err
	}
	if err := rt.Register(MiddlewareRateLimitIncrement, MaybeRateLimitIncrement); err != nil {
		return err
	}

	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{
		MiddlewareAfter: []string{MiddlewareRateLimitIncrement},
	}, HandleTelegramRaw)
	rt.Route(event.TypeVideoDownload, 1, router.RouteOptions{}, HandleVideoDownload)
	rt.Route(event.TypeAudioDownload, 1, router.RouteOptions{}, HandleAudioDownload)

	return nil
}
