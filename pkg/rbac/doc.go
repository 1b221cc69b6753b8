// Package rbac resolves roles and answers permission questions for the API
// management console.
//
// # Overview
//
// Every authenticated request carries a principal whose authorities are the
// union of the token's permission claims and the roles the subject holds on
// the default environment. This package provides the pieces that produce and
// consume those authorities:
//
//	MembershipStore   - memberships and role definitions (SQLStore on database/sql)
//	RoleResolver      - PORTAL and MANAGEMENT roles on the DEFAULT reference
//	CachingResolver   - optional in-process LRU with TTL
//	RedisRoleCache    - optional cache shared between console instances
//	BuildAuthorities  - claims + roles to a de-duplicated authority set
//	PermissionChecker - anonymous deny, admin bypass, evaluator delegation
//	StoreEvaluator    - fine-grained CRUD checks against role definitions
//
// # Scopes and Roles
//
// A role belongs to one scope (MANAGEMENT, PORTAL, API, APPLICATION, GROUP)
// and renders as the authority "<SCOPE>:<NAME>". MANAGEMENT:ADMIN and
// PORTAL:ADMIN are global admin authorities: holders pass every permission
// check without consulting the evaluator.
//
// # Role Definitions
//
// A role definition maps permissions to CRUD letter sets:
//
//	roles:
//	  - scope: API
//	    name: OWNER
//	    permissions:
//	      API_DEFINITION: CRUD
//	      API_ANALYTICS: R
//
// Load a catalog with LoadRoleDefinitions and persist it with
// SeedRoleDefinitions. DefaultRoleDefinitions is used when no file is given.
//
// # Usage
//
//	store := rbac.NewSQLStore(db)
//	if err := rbac.RunMigrations(ctx, db, logger); err != nil {
//		return err
//	}
//	resolver := rbac.NewCachingResolver(rbac.NewRoleResolver(store, metrics), 1000, time.Minute, metrics)
//	checker := rbac.NewPermissionChecker(rbac.NewStoreEvaluator(store, logger), logger, metrics)
//
//	ok := checker.HasPermission(ctx, auth.SecurityContextFrom(ctx),
//		rbac.NewPermissionDescriptor(rbac.PermissionAPIPlan, rbac.ActionUpdate), &apiID)
package rbac
