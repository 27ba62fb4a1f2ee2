// Package config loads and validates the stowgate server configuration.
//
// Values are merged from, lowest precedence first:
//
//  1. Default values
//  2. Configuration file(s), merged left to right
//  3. Environment variables (STOWGATE_ prefix)
//  4. CLI flags
//
// Keys map to environment variables by upper-casing and replacing dots:
//   - server.port → STOWGATE_SERVER_PORT
//   - backend.type → STOWGATE_BACKEND_TYPE
//   - auth.secret → STOWGATE_AUTH_SECRET
//
// Usage:
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx = config.WithContext(ctx, cfg)
//
// Validation rejects, among others, ports outside 1-65535, unknown backend
// types, a non-filesystem backend without a bucket, a minio backend without
// an endpoint and enabled metrics without a listen address.
package config
