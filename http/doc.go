// Package http exposes the gateway over HTTP using a chi router.
//
// Every path below / is an object key:
//
//	GET    /<key>  stream the object; private objects need authorization
//	PUT    /<key>  upload, replacing content and x-store-* metadata
//	PATCH  /<key>  replace x-store-* metadata only
//	DELETE /<key>  delete (best-effort, see stowgate.Service.Delete)
//	GET    /       authenticated JSON listing, when enabled
//
// Any other method answers 405 "Method not allowed".
//
// # Authentication
//
// Mutations go through RequireAuth, which answers a plain 401 "Unauthorized"
// when the configured stowgate.Authorizer refuses the request. GET consults
// the authorizer only for objects whose x-store-visibility is not "public",
// and answers 404 "Not found" when it refuses, exactly as for a missing
// object.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    Authorizer:  stowgate.NewSecretAuthorizer(secret, ""),
//	    ListEnabled: true,
//	}
//	handler := http.NewHandler(&handlerCfg, service)
//	http.ListenAndServe(":8080", handler.Router())
//
// # Errors
//
// Failures other than the fixed text responses above are written by
// HandleError as JSON {"error": ..., "code": ...}. Backend 401 and 403 keep
// their status; the code is the backend's error code or "Unknown".
package http
