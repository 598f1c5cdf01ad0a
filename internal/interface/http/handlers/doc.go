// Package handlers contains reusable HTTP middleware and health checking.
//
// # Health Checks
//
// Named checks are executed in parallel. A failing required check makes the
// service unready; a failing optional check only marks it degraded:
//
//	checker := handlers.NewHealth("1.0.0")
//	checker.AddCheck("store", handlers.PingProbe(store))
//	checker.AddOptionalCheck("redis", handlers.PingProbe(cache))
//	checker.AddOptionalCheck("leetcode", handlers.CircuitProbe(client))
//
// # Middleware
//
// RequestID, Logging, Recovery, CORS and RateLimiter.Middleware all have the
// func(http.Handler) http.Handler shape and plug into chi's Use.
package handlers
