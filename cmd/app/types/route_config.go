package types

import (
	"docpipe/internal/orchestrator"
	"docpipe/internal/session"
)

type RouteConfig struct {
	APIConfig    APIConfig
	Sessions     *session.Manager
	Orchestrator orchestrator.Orchestrator
}
