package store

import "github.com/organizer-live/organizer/internal/platform/metrics"

var snapshotsDelivered = metrics.NewCounter(metrics.Opts{
	Name: "organizer_store_snapshots_delivered_total",
	Help: "Complete snapshots handed to feed subscribers.",
})

var changePublishFailures = metrics.NewCounter(metrics.Opts{
	Name: "organizer_store_change_publish_failures_total",
	Help: "Change notes that could not be published after a committed write.",
})

var purgedRecords = metrics.NewCounter(metrics.Opts{
	Name: "organizer_store_purged_records_total",
	Help: "Soft-deleted records hard-removed by the janitor.",
})

var storeRequests = metrics.NewCounterVec(metrics.Opts{
	Name: "organizer_store_requests_total",
	Help: "Store requests by operation and outcome.",
}, []string{"op", "outcome"})

func countRequest(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeRequests.WithLabelValues(op, outcome).Inc()
}

func init() {
	metrics.Default.MustRegister(snapshotsDelivered, changePublishFailures, purgedRecords, storeRequests)
}
