/*
Package ports defines the driven ports (interfaces) for the Canopy runtime.

These interfaces decouple the fetch engine and session layer from concrete wire
formats and storage backends.

# Key Interfaces

  - Decoder: Turns an HTTP response body into a resolved Elements mapping, calling
    back into the runtime when the stream requests a nested remote call.
  - ArgsEncoder: Serializes remote-call arguments into a request body.
  - SnapshotStore: Persists the last resolved Elements of a session.
  - DistributedLocker: Coordinates snapshot writes across replicas.
*/
package ports
