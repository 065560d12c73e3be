package livecache

import "github.com/organizer-live/organizer/internal/platform/metrics"

var watcherDeliveries = metrics.NewCounter(metrics.Opts{
	Name: "organizer_livecache_watcher_deliveries_total",
	Help: "Snapshot deliveries fanned out to cache watchers.",
})

var liveWatchers = metrics.NewGauge(metrics.Opts{
	Name: "organizer_livecache_watchers",
	Help: "Currently registered cache watchers.",
})

func init() {
	metrics.Default.MustRegister(watcherDeliveries, liveWatchers)
}
