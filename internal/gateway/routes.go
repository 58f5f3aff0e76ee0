package gateway

import (
	"github.com/baechuer/media-pirate/internal/contracts/event"
	"github.com/baechuer/media-pirate/internal/core/router"
)

// Routes declares the gateway's route table and middleware registry.
func Routes(rt *router.Router[*Deps]) error {
	if err := router.RegisterGuards(rt); err != nil {
		return err
	}
	if err := rt.RegisterAfter(MiddlewareCleanupCounter, CleanupCounter); err != nil {
		return err
	}
	if err := rt.RegisterAfter(MiddlewareCorrelationCleanup, CorrelationCleanup); err != nil {
		return err
	}

	rt.Route(event.TypeTelegramRaw, 1, router.RouteOptions{}, HandleAdminRaw)
	rt.Route(event.TypeVideoReady, 1, router.RouteOptions{}, HandleVideoReady)
	rt.Route(event.TypeAudioReady, 1, router.RouteOptions{}, HandleAudioReady)
	rt.Route(event.TypeGatewayReply, 1, router.RouteOptions{}, HandleReply)
	rt.Route(event.TypeMessageUpdate, 1, router.RouteOptions{}, HandleMessageUpdate)
	rt.Route(event.TypeDownloadsCleanup, 1, router.RouteOptions{}, HandleDownloadsCleanup)
	rt.Route(event.TypeGatewayGrace, 1, router.RouteOptions{}, HandleGrace)
	rt.Route(event.TypeGatewaySmite, 1, router.RouteOptions{}, HandleSmite)

	return nil
}
