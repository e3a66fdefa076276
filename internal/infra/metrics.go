package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	bidsAccepted   atomic.Uint64
	bidsRejected   atomic.Uint64
	extensions     atomic.Uint64
	auctionsClosed atomic.Uint64
	itemsCreated   atomic.Uint64

	// Gauges
	wsConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordBidAccepted counts an accepted bid.
func (m *Metrics) RecordBidAccepted() {
	m.bidsAccepted.Add(1)
}

// RecordBidRejected counts a rejected bid attempt.
func (m *Metrics) RecordBidRejected() {
	m.bidsRejected.Add(1)
}

// RecordExtension counts an anti-sniping deadline extension.
func (m *Metrics) RecordExtension() {
	m.extensions.Add(1)
}

// RecordAuctionClosed counts an item transitioned to ended.
func (m *Metrics) RecordAuctionClosed() {
	m.auctionsClosed.Add(1)
}

// RecordItemCreated counts a new auction item.
func (m *Metrics) RecordItemCreated() {
	m.itemsCreated.Add(1)
}

// IncrementConnections increments live websocket connections by 1.
func (m *Metrics) IncrementConnections() {
	m.wsConnections.Add(1)
}

// DecrementConnections decrements live websocket connections by 1.
func (m *Metrics) DecrementConnections() {
	m.wsConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	BidsAccepted   uint64    `json:"bids_accepted"`
	BidsRejected   uint64    `json:"bids_rejected"`
	Extensions     uint64    `json:"extensions"`
	AuctionsClosed uint64    `json:"auctions_closed"`
	ItemsCreated   uint64    `json:"items_created"`
	WSConnections  int32     `json:"ws_connections"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BidsAccepted:   m.bidsAccepted.Load(),
		BidsRejected:   m.bidsRejected.Load(),
		Extensions:     m.extensions.Load(),
		AuctionsClosed: m.auctionsClosed.Load(),
		ItemsCreated:   m.itemsCreated.Load(),
		WSConnections:  m.wsConnections.Load(),
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.bidsAccepted.Store(0)
	m.bidsRejected.Store(0)
	m.extensions.Store(0)
	m.auctionsClosed.Store(0)
	m.itemsCreated.Store(0)
	m.wsConnections.Store(0)
}
