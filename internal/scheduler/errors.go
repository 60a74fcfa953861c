package scheduler

import "errors"

// errNoRoutes signals that a route-scoped job ran before the routes job
// populated the cache; the job loop retries on its shortened schedule.
var errNoRoutes = errors.New("routes not cached yet")
