// Package handlers contains reusable HTTP building blocks for the score hub
// API: health checks and middleware.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("database", handlers.NewPingCheck(store))
//	checker.AddCheck("cache", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// # Admin Key
//
// Endpoints that change scores are guarded by AdminKeyAuth, which compares
// the presented key against a bcrypt hash:
//
//	auth, err := handlers.NewAdminKeyAuth(hash)
//	mux.Handle("POST /api/games", auth.Middleware(saveGame))
//
// An empty hash disables the check, which is only allowed outside production.
package handlers
