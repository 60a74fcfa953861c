package cache

// Namespaced remote cache keys, one per resource kind plus derived views.
const (
	keyRoutes      = "tp:resource:routes"
	keyLines       = "tp:resource:lines"
	keyStops       = "tp:resource:stops"
	keyVehicles    = "tp:resource:vehicles"
	keyPredictions = "tp:resource:predictions"
	keyAlerts      = "tp:resource:alerts"
	keyTrips       = "tp:resource:trips"
	keyShapes      = "tp:resource:shapes"
	keyStopRoutes  = "tp:resource:stop-routes"
)

// ViewKey namespaces a derived-view cache key.
func ViewKey(name string) string {
	return "tp:view:" + name
}
