// Package api exposes the HTTP boundary. Handlers validate and coerce
// query parameters into typed requests before touching any core logic.
package api

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/transitpulse/transitpulse_core/internal/aggregate"
	"github.com/transitpulse/transitpulse_core/internal/cache"
	"github.com/transitpulse/transitpulse_core/internal/upstream"
	"github.com/transitpulse/transitpulse_core/internal/views"
)

// Handlers bundles the services behind the HTTP boundary.
type Handlers struct {
	Aggregate *aggregate.Service
	Views     *views.Builder
	Store     *cache.Store
	Client    *upstream.Client
}

// Register mounts all routes on the app.
func (h *Handlers) Register(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/home", h.Home)
	api.Get("/stations", h.Stations)
	api.Get("/stations/:stopId/board", h.StationBoard)
	api.Get("/trips/:tripId/track", h.TripTrack)
	api.Get("/lines", h.Lines)
	api.Get("/lines/:id/overview", h.LineOverview)
	api.Get("/lines/:id/shapes", h.LineShapes)
	api.Get("/routes/:id/shapes", h.RouteShapes)
	api.Get("/vehicles", h.Vehicles)
	api.Get("/system/insights", h.Insights)
	api.Get("/health", h.Health)
}

// Home handles GET /api/home?lat&lng&radius&limit&favorites
func (h *Handlers) Home(c *fiber.Ctx) error {
	latStr := c.Query("lat")
	lngStr := c.Query("lng")
	if latStr == "" || lngStr == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameters: lat and lng",
		})
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid latitude"})
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid longitude"})
	}

	radius, _ := strconv.Atoi(c.Query("radius", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	var favorites []string
	if favStr := c.Query("favorites"); favStr != "" {
		for _, id := range strings.Split(favStr, ",") {
			if id = strings.TrimSpace(id); id != "" {
				favorites = append(favorites, id)
			}
		}
	}

	snap, err := h.Aggregate.HomeSnapshot(c.Context(), aggregate.HomeQuery{
		Lat:             lat,
		Lng:             lng,
		RadiusM:         radius,
		Limit:           limit,
		FavoriteStopIDs: favorites,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

// StationBoard handles GET /api/stations/:stopId/board
func (h *Handlers) StationBoard(c *fiber.Ctx) error {
	stopID := c.Params("stopId")
	if stopID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "missing stop id"})
	}
	board, err := h.Aggregate.StationBoard(c.Context(), stopID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(board)
}

// TripTrack handles GET /api/trips/:tripId/track
func (h *Handlers) TripTrack(c *fiber.Ctx) error {
	tripID := c.Params("tripId")
	if tripID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "missing trip id"})
	}
	track, err := h.Views.TrackTrip(c.Context(), tripID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(track)
}

// Lines handles GET /api/lines
func (h *Handlers) Lines(c *fiber.Ctx) error {
	summaries, err := h.Views.LineSummaries()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"lines": summaries})
}

// LineOverview handles GET /api/lines/:id/overview
func (h *Handlers) LineOverview(c *fiber.Ctx) error {
	overview, err := h.Views.LineOverview(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(overview)
}

// LineShapes handles GET /api/lines/:id/shapes
func (h *Handlers) LineShapes(c *fiber.Ctx) error {
	shapes, err := h.Views.LineShapes(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"shapes": shapes})
}

// RouteShapes handles GET /api/routes/:id/shapes
func (h *Handlers) RouteShapes(c *fiber.Ctx) error {
	shapes, err := h.Views.RouteShapes(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"shapes": shapes})
}

// Stations handles GET /api/stations?q&limit
func (h *Handlers) Stations(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	stations, err := h.Views.Stations(c.Query("q"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stations": stations, "total": len(stations)})
}

// Vehicles handles GET /api/vehicles?route
func (h *Handlers) Vehicles(c *fiber.Ctx) error {
	view, err := h.Views.Vehicles(c.Query("route"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// Insights handles GET /api/system/insights
func (h *Handlers) Insights(c *fiber.Ctx) error {
	insights, err := h.Views.Insights()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(insights)
}

// Health handles GET /api/health
func (h *Handlers) Health(c *fiber.Ctx) error {
	health := h.Store.Health(c.Context())

	status := "healthy"
	httpStatus := 200
	if health.PredictionsIsStale {
		status = "degraded"
	}
	if strings.HasPrefix(health.RemoteCacheStatus, "error") {
		status = "degraded"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":   status,
		"cache":    health,
		"upstream": h.Client.Telemetry(),
	})
}

// respondError maps core errors to the boundary's error envelope. Raw
// upstream error text is logged server-side, never leaked to clients.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, aggregate.ErrNotReady), errors.Is(err, views.ErrNotReady):
		return c.Status(503).JSON(fiber.Map{
			"error":   "data not ready",
			"message": "resource cache is still warming up",
		})
	case errors.Is(err, aggregate.ErrStopNotFound), errors.Is(err, views.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "not found"})
	default:
		log.Printf("Request failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
