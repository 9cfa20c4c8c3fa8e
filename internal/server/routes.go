package server

import (
	"github.com/danielgtaylor/huma/v2"

	v1 "github.com/datagate-io/datagate/internal/api/v1"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterToolRoutes(api, deps.Gateway)
	v1.RegisterAgentRoutes(api, deps.Agents, deps.Policies)
	v1.RegisterAuditRoutes(api, deps.Audit)
}
