package canopy

// Version is the library version reported by the CLI and the /info endpoint.
var Version = "0.1.0"
