// Package api provides the HTTP resources of the API management console.
//
// # Resources
//
// Resource is embedded by handler groups and answers the questions every
// console resource asks about its caller:
//
//	if !h.IsAuthenticated(r) { ... }
//	if !h.HasPermission(r, rbac.PermissionAPIPlan, &apiID, rbac.ActionUpdate) { ... }
//	if err := h.CheckImageSize(body.Picture); err != nil { ... }
//
// # API Endpoints
//
//	GET /management/user                    current principal, 401 when anonymous
//	GET /management/user/permissions        permission decision for the caller
//	GET /management/configuration/rolescopes/{scope}/roles/{role}
//	                                        role definition, needs MANAGEMENT_ROLE[READ]
//	GET /health, /health/live, /health/ready
//	GET /metrics
//
// # Server
//
//	server := api.NewServer(api.NewResource(checker), authn.Handler, health, metricsHandler,
//		api.WithRoleDefinitions(store))
//	http.ListenAndServe(":8083", server)
package api
