// Package constants provides shared constants used throughout ordersync.
// Values that have a business meaning (placeholders, collect policy) live
// here so the reconciler, enhancers and stores agree on them.
package constants

import "time"

// Timeout constants
const (
	// DefaultFetchTimeout bounds the single upstream open-orders request
	DefaultFetchTimeout = 15 * time.Second

	// MinFetchTimeout is the lowest accepted upstream timeout
	MinFetchTimeout = 10 * time.Second

	// MaxFetchTimeout is the highest accepted upstream timeout
	MaxFetchTimeout = 20 * time.Second

	// DefaultSyncTimeout bounds a whole fetch, merge, save, enhance cycle
	DefaultSyncTimeout = 2 * time.Minute

	// DefaultUpdateInterval is the default interval between automatic cycles
	DefaultUpdateInterval = 5 * time.Minute

	// DialTimeout is the timeout for establishing upstream connections
	DialTimeout = 5 * time.Second

	// StoreBusyTimeout is how long sqlite waits on a locked database
	StoreBusyTimeout = 5 * time.Second

	// ShutdownTimeout bounds graceful shutdown of the metrics server
	ShutdownTimeout = 5 * time.Second
)

// File permission constants
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for files holding raw customer payloads (rw-------)
	SecureFilePermissions = 0600
)

// Reconciliation policy
const (
	// CustomerNamePlaceholder is stored when no customer name can be derived
	CustomerNamePlaceholder = "N/A"

	// ProductImagePlaceholder is stored when no catalog image matches
	ProductImagePlaceholder = "placeholder.png"

	// DefaultCollectTag marks an order as collect-on-delivery
	DefaultCollectTag = "COD"

	// DefaultAdvancePercent is the share of a collect item booked as prepaid advance
	DefaultAdvancePercent = 10

	// DefaultStatusParam is the upstream query parameter filtering order status
	DefaultStatusParam = "status"

	// DefaultStatusValue selects open orders upstream
	DefaultStatusValue = "open"
)

// Limits
const (
	// MaxResponseBytes caps the upstream body we are willing to buffer (32 MiB)
	MaxResponseBytes = 32 << 20

	// PayloadSnapshotsRetained is how many raw payloads the pebble cache keeps
	PayloadSnapshotsRetained = 20

	// ArchiveRowsLimit caps rows returned by archive listings
	ArchiveRowsLimit = 1000
)
