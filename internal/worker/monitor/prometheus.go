package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// RPCRequests RPC 请求相关
	RPCRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total number of JSON-RPC requests by method.",
		},
		[]string{"method"},
	)
	RPCErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_errors_total",
			Help: "Total number of failed JSON-RPC requests by method.",
		},
		[]string{"method"},
	)

	// Snapshot reconstruction metrics
	TransferEventsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_events_fetched_total",
			Help: "Total number of transfer events fetched per integration.",
		},
		[]string{"integration_id"},
	)
	TransferEventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_events_processed_total",
			Help: "Total number of transfer events folded into balances per integration.",
		},
		[]string{"integration_id"},
	)
	SnapshotPagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_pages_fetched_total",
			Help: "Total number of log pages fetched while building snapshots.",
		},
		[]string{"integration_id"},
	)
	SnapshotBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_build_duration_seconds",
			Help:    "Time taken to reconstruct balances for one target block.",
			Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0},
		},
		[]string{"integration_id"},
	)
	SnapshotHolderCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapshot_holder_count",
			Help: "Number of holders in the latest snapshot per integration.",
		},
		[]string{"integration_id"},
	)

	// AsyncWriterMessagesQueued AsyncWriter 指标
	AsyncWriterMessagesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_queued_total",
			Help: "Total number of messages queued to async writer.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_dropped_total",
			Help: "Total number of messages dropped due to full queue.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_batch_size",
			Help:    "Number of items in each batch submitted to the writer.",
			Buckets: []float64{10, 50, 100, 200, 500, 1000},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_count_total",
			Help: "Total number of batch flushes triggered.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_flush_duration_seconds",
			Help:    "Time taken to flush a batch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"writer_id"},
	)
	AsyncWriterItemsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_items_written_total",
			Help: "Total number of items successfully written by the async writer.",
		},
		[]string{"writer_id"},
	)
)

func init() {
	prometheus.MustRegister(
		// rpc指标
		RPCRequests,
		RPCErrors,

		// snapshot指标
		TransferEventsFetched,
		TransferEventsProcessed,
		SnapshotPagesFetched,
		SnapshotBuildDuration,
		SnapshotHolderCount,

		// async 写入指标
		AsyncWriterMessagesQueued,
		AsyncWriterMessagesDropped,
		AsyncWriterBatchSize,
		AsyncWriterFlushCount,
		AsyncWriterFlushDuration,
		AsyncWriterItemsWritten,
	)
}
