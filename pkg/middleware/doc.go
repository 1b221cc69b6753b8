// Package middleware provides HTTP middleware for authentication and authorization.
//
// # Overview
//
// AuthMiddleware runs once per request, strictly in this order:
//
//  1. extract the credential from the Authorization header or the console cookie
//  2. verify the token and decode its claims
//  3. resolve the subject's PORTAL and MANAGEMENT roles
//  4. build the authority set and the principal
//  5. publish the principal on the request's SecurityContext
//
// Requests without a usable credential continue anonymously. Requests whose
// token fails verification, or whose roles cannot be resolved, receive a 401
// and a cookie that clears the stored credential.
//
// # Middleware Components
//
// AuthMiddleware: Token authentication
//
//	authn := middleware.NewAuthMiddleware(extractor, verifier, resolver, cookies, logger, metrics)
//	router.Use(authn.Handler)
//
// RequireAuthenticated: Reject anonymous requests
//
//	router.Handle("/management/user", middleware.RequireAuthenticated()(handler))
//
// RequirePermission: Guard a route with a permission check
//
//	desc := rbac.NewPermissionDescriptor(rbac.PermissionAPIPlan, rbac.ActionUpdate)
//	router.Handle("/management/apis/{api}/plans",
//		middleware.RequirePermission(checker, desc, "api")(handler))
package middleware
