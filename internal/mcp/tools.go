package mcp

import (
	"context"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Return the user's open training session: exercises with their sets (weight, reps, completion, rest timestamps) and everything already logged. Returns no session when none is open."),
)

var toolListExerciseCandidates = mcp.NewTool("list_exercise_candidates",
	mcp.WithDescription("Search exercises that can be added to a session. Owned and shared catalog items come first, followed by built-in templates not already in the catalog."),
	mcp.WithString("query", mcp.Description("Name filter, case and accent insensitive (e.g. 'bench')")),
	mcp.WithString("category", mcp.Description("Muscle-group category"), mcp.Enum(catalog.Categories...)),
	mcp.WithString("context", mcp.Description("Gym context id. Defaults to the default gym.")),
)

var toolGetSessionLogs = mcp.NewTool("get_session_logs",
	mcp.WithDescription("Return the sets logged for a session, grouped by exercise in the order they were trained."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
)

// --- Tool handlers ---

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	state, err := h.ds.ActiveSession(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(state)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExerciseCandidates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := catalog.Filter{
		Query:    req.GetString("query", ""),
		Category: req.GetString("category", ""),
	}
	if f.Category != "" && !catalog.ValidCategory(f.Category) {
		return mcp.NewToolResultError("unknown category: " + f.Category), nil
	}

	uid := UserIDFromContext(ctx)
	refs, err := h.ds.ListCandidates(ctx, uid, req.GetString("context", ""), f)
	if err != nil {
		h.log.Error("mcp list_exercise_candidates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(refs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)
	logs, err := h.ds.SessionLogs(ctx, uid, sessionID)
	if err != nil {
		h.log.Error("mcp get_session_logs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(logs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
