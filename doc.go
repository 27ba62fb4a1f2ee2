// Package stowgate is a thin HTTP gateway in front of an object storage
// bucket.
//
// Every object is addressed by its key. Reads are public for objects whose
// x-store-visibility metadata is "public"; everything else, including all
// mutations, requires the shared secret (or a presigned share link for the
// exact method and path).
//
// # Key Components
//
//   - Service: maps gateway operations onto an ObjectStore, including the
//     best-effort delete heuristics
//   - ObjectStore: backend interface (s3, minio and filesystem packages)
//   - Metadata / MetadataPolicy: the typed x-store-* metadata and the
//     allow-list applied to request headers
//   - Authorizer: shared-secret and presign authorization
//
// # Example Usage
//
//	service, err := stowgate.NewService(store, stowgate.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	meta := stowgate.Metadata{Visibility: stowgate.VisibilityPublic}
//	info, err := service.Put(ctx, "notes/today.txt", meta, body)
//
//	info, body, err := service.Get(ctx, "notes/today.txt")
//
// See the http package for the HTTP surface and the backend package for
// constructing a store from configuration.
package stowgate
