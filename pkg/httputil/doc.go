// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// Every error body has the shape {"error": "<message>"}:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteUnauthorized(w, "invalid token")
//	httputil.WriteForbidden(w, "insufficient permissions")
//
// # Request Helpers
//
//	permission := httputil.ParseQueryString(r, "permission", "")
//	actions := httputil.ParseQueryList(r, "actions")   // ?actions=READ,UPDATE
//	ref := httputil.ParseQueryOptional(r, "referenceId")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)(router)
package httputil
