package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "frames_processed_total",
		Help:      "Total number of detection frames applied to a tracker",
	}, []string{"camera_id"})

	ActiveTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fila",
		Name:      "active_tracks",
		Help:      "Number of identities currently held by a tracker",
	}, []string{"camera_id"})

	TracksEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "tracks_evicted_total",
		Help:      "Total number of identities evicted after disappearing",
	}, []string{"camera_id"})

	ReportsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "segment_reports_total",
		Help:      "Segment reports by outcome",
	}, []string{"camera_id", "result"})

	ReportsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "segment_reports_published_total",
		Help:      "Segment reports published by the segmenter",
	}, []string{"camera_id"})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fila",
		Name:      "queue_length",
		Help:      "People in the queue across active segments",
	})

	ActiveSegments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fila",
		Name:      "active_segments",
		Help:      "Segments reported within the liveness window",
	})

	PeopleAttended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "people_attended_total",
		Help:      "People inferred as attended",
	})

	PresenceDropouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "presence_dropouts_total",
		Help:      "Presence keys discarded before the minimum dwell",
	})

	WaitMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fila",
		Name:      "wait_minutes",
		Help:      "Observed wait of attended people in minutes",
		Buckets:   prometheus.LinearBuckets(1, 2, 15),
	})

	StatsResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "stats_resets_total",
		Help:      "Statistics resets by trigger",
	}, []string{"trigger"})

	ArchiveWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fila",
		Name:      "archive_writes_total",
		Help:      "Daily summary archive writes by sink and result",
	}, []string{"sink", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fila",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fila",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
