package registry

import (
	"github.com/ixledger/node/foundation/metrics"
)

const subsystem = "names"

var (
	nameCount = metrics.NewGauge(
		"registered",
		subsystem,
		"Number of registered names",
		nil,
	)

	entriesApplied = metrics.NewCounter(
		"entries_applied_total",
		subsystem,
		"Journal entries applied to the registry",
		[]string{"type"},
	)

	entriesFailed = metrics.NewCounter(
		"entries_failed_total",
		subsystem,
		"Journal entries rejected by the registry",
		[]string{"type"},
	)

	checksumDuration = metrics.NewHistogram(
		"checksum_seconds",
		subsystem,
		"Time spent computing registry checksums",
		[]string{"kind"},
	)
)
