// Package mcp exposes the workout tracker to MCP clients: assistants can read
// the current day plan, log sets, and move the view cursor.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/repcal/internal/exercises"
	"github.com/meltforce/repcal/internal/routine"
	"github.com/meltforce/repcal/internal/state"
)

// New creates an MCP server with all tools and resources registered.
func New(states *state.Manager, routines *routine.Service, catalog *exercises.Catalog, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepCal", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCal workout tracker. Read routines and day plans, log sets, toggle exercise completion, and move the week/day cursor. All data belongs to the active profile."),
	)

	h := &handlers{states: states, routines: routines, catalog: catalog, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListRoutines, Handler: h.listRoutines},
		server.ServerTool{Tool: toolGetRoutine, Handler: h.getRoutine},
		server.ServerTool{Tool: toolGetDayPlan, Handler: h.getDayPlan},
		server.ServerTool{Tool: toolLogSet, Handler: h.logSet},
		server.ServerTool{Tool: toolToggleExercise, Handler: h.toggleExercise},
		server.ServerTool{Tool: toolSetView, Handler: h.setView},
		server.ServerTool{Tool: toolGetProgressSummary, Handler: h.getProgressSummary},
		server.ServerTool{Tool: toolGetExerciseInfo, Handler: h.getExerciseInfo},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resDayPlan, Handler: h.dayPlan},
		server.ServerResource{Resource: resRoutineList, Handler: h.routineList},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	states   *state.Manager
	routines *routine.Service
	catalog  *exercises.Catalog
	log      *slog.Logger
}

// --- Resource definitions ---

var resDayPlan = mcp.NewResource(
	"repcal://day_plan",
	"Current Day Plan",
	mcp.WithResourceDescription("The exercises for the currently selected routine, week, and day, with progress and time estimates"),
	mcp.WithMIMEType("application/json"),
)

var resRoutineList = mcp.NewResource(
	"repcal://routines",
	"Routine List",
	mcp.WithResourceDescription("All routines the user has added, plus the remote catalog entries available for import"),
	mcp.WithMIMEType("application/json"),
)
