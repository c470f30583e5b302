package domain

// Reserved keys and wire defaults.
const (
	// KeyValue carries a remote call's non-UI return value inside a decoded tree.
	// It never survives a merge into the rendered tree.
	KeyValue = "_value"

	// DefaultBasePath is the public path prefix the server is mounted on.
	DefaultBasePath = "/"

	// DefaultRSCBase is the segment under the base path that serves element streams.
	DefaultRSCBase = "RSC"
)
