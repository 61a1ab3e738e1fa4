package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// reindexTimeout bounds the startup rebuild of the title index.
	reindexTimeout = 5 * time.Minute
)
