// Package logger provides a singleton Zap logger with context-based scoping.
//
// Initialize once in main:
//
//	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
//	defer logger.Sync()
//
// In handlers and services, prefer the context-scoped logger so request
// fields (request_id, client_id) travel with the call:
//
//	log := logger.From(ctx)
//	log.Info("token issued", logger.GrantType(gt))
//
// Without a context the singleton is the fallback:
//
//	logger.L().Info("server started")
package logger
