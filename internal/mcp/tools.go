package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"devctx/internal/format"
	"devctx/internal/session"
)

// toolHandler executes MCP tool calls against the session manager.
// Domain conditions (untracked path, idle project) are reported inside
// the tool payload; only unknown tools surface as call errors.
type toolHandler struct {
	manager *session.Manager
}

func newToolHandler(manager *session.Manager) *toolHandler {
	return &toolHandler{manager: manager}
}

func (h *toolHandler) handle(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}

	switch name {
	case "devcontext_status":
		return h.handleStatus(path)
	case "devcontext_start":
		return h.handleStart(ctx, path)
	case "devcontext_end":
		return h.handleEnd(ctx, path)
	case "devcontext_note":
		return h.handleNote(ctx, path, args)
	case "devcontext_summary":
		return h.handleSummary(ctx, path)
	case "devcontext_resume":
		return h.handleResume(ctx, path)
	case "devcontext_init":
		return h.handleInit(path, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func (h *toolHandler) handleStatus(path string) (interface{}, error) {
	status, err := h.manager.Status(path)
	if errors.Is(err, session.ErrProjectNotFound) {
		return map[string]interface{}{
			"tracked": false,
			"message": "Project not initialized",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"tracked":        true,
		"project":        status.Project.Name,
		"path":           status.Project.Path,
		"last_active":    status.LastActive,
		"session_active": status.Session != nil,
	}
	if status.Session != nil {
		result["session_duration"] = format.Span(status.Duration)
	} else {
		result["session_duration"] = nil
	}
	return result, nil
}

func (h *toolHandler) handleStart(ctx context.Context, path string) (interface{}, error) {
	res, err := h.manager.Start(ctx, path)
	if errors.Is(err, session.ErrProjectNotFound) {
		return map[string]interface{}{
			"success": false,
			"error":   "Project not initialized. Run devctx init first.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if res.AlreadyActive {
		return map[string]interface{}{
			"success":  true,
			"message":  "Session already active",
			"duration": format.Span(res.Elapsed),
		}, nil
	}
	return map[string]interface{}{
		"success":    true,
		"message":    fmt.Sprintf("Session started for %s", res.Project.Name),
		"session_id": res.Session.ID,
	}, nil
}

func (h *toolHandler) handleEnd(ctx context.Context, path string) (interface{}, error) {
	res, err := h.manager.End(ctx, path)
	if errors.Is(err, session.ErrProjectNotFound) {
		return map[string]interface{}{"success": false, "error": "Project not initialized"}, nil
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		return map[string]interface{}{"success": false, "error": "No active session"}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success":  true,
		"duration": format.Span(res.Duration),
		"summary":  res.Summary,
	}, nil
}

func (h *toolHandler) handleNote(ctx context.Context, path string, args map[string]interface{}) (interface{}, error) {
	text, _ := args["note"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]interface{}{"success": false, "error": "Note text required"}, nil
	}

	res, err := h.manager.Note(ctx, path, text)
	if errors.Is(err, session.ErrProjectNotFound) {
		return map[string]interface{}{"success": false, "error": "Project not initialized"}, nil
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		return map[string]interface{}{"success": false, "error": "No active session"}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Note added: %s", res.Note.Content),
	}, nil
}

func (h *toolHandler) handleSummary(ctx context.Context, path string) (interface{}, error) {
	res, err := h.manager.MidSummary(ctx, path)
	if errors.Is(err, session.ErrProjectNotFound) {
		return map[string]interface{}{"success": false, "error": "Project not initialized"}, nil
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		return map[string]interface{}{"success": false, "error": "No active session"}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success":  true,
		"duration": format.Span(res.Duration),
		"notes":    res.Notes,
		"summary":  res.Summary,
	}, nil
}

func (h *toolHandler) handleResume(ctx context.Context, path string) (interface{}, error) {
	res, err := h.manager.Resume(ctx, path)
	if errors.Is(err, session.ErrProjectNotFound) {
		return map[string]interface{}{"success": false, "error": "Project not initialized"}, nil
	}
	if err != nil {
		return nil, err
	}

	var lastSummary interface{}
	if res.LastSession != nil {
		lastSummary = res.LastSession.Summary
	}
	noteTexts := []string{}
	for _, n := range res.RecentNotes {
		noteTexts = append(noteTexts, n.Content)
	}
	var gitState interface{}
	if res.Snapshot != nil {
		modified := res.Snapshot.ModifiedFiles
		if len(modified) > 10 {
			modified = modified[:10]
		}
		gitState = map[string]interface{}{
			"branch":                  res.Snapshot.Branch,
			"modified_files":          modified,
			"has_uncommitted_changes": res.Snapshot.HasUncommittedChanges,
		}
	}

	return map[string]interface{}{
		"success":              true,
		"project":              res.Project.Name,
		"last_active":          res.TimeAway,
		"last_session_summary": lastSummary,
		"recent_notes":         noteTexts,
		"git":                  gitState,
	}, nil
}

func (h *toolHandler) handleInit(path string, args map[string]interface{}) (interface{}, error) {
	name, _ := args["name"].(string)

	res, err := h.manager.Init(path, name)
	if err != nil {
		return nil, err
	}

	if res.AlreadyTracked {
		return map[string]interface{}{
			"success": true,
			"message": fmt.Sprintf("Project %s already tracked", res.Project.Name),
			"project": res.Project.Name,
		}, nil
	}
	return map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Initialized %s for context tracking", res.Project.Name),
		"project": res.Project.Name,
	}, nil
}

// toolDefinitions lists the MCP tool surface.
func toolDefinitions() []Tool {
	pathProp := map[string]interface{}{
		"type":        "string",
		"description": "Project path (defaults to cwd)",
	}
	pathOnly := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": pathProp,
		},
	}

	return []Tool{
		{
			Name:        "devcontext_status",
			Description: "Get current project and session status",
			InputSchema: pathOnly,
		},
		{
			Name:        "devcontext_start",
			Description: "Start a new work session for context tracking",
			InputSchema: pathOnly,
		},
		{
			Name:        "devcontext_end",
			Description: "End current session and generate summary",
			InputSchema: pathOnly,
		},
		{
			Name:        "devcontext_note",
			Description: "Add a note to the current session",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"note": map[string]interface{}{
						"type":        "string",
						"description": "Note content to add",
					},
					"path": pathProp,
				},
				"required": []string{"note"},
			},
		},
		{
			Name:        "devcontext_summary",
			Description: "Get AI summary of current session without ending it",
			InputSchema: pathOnly,
		},
		{
			Name:        "devcontext_resume",
			Description: "Get context to resume work on a project",
			InputSchema: pathOnly,
		},
		{
			Name:        "devcontext_init",
			Description: "Initialize context tracking for a project",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProp,
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Project name (defaults to directory name)",
					},
				},
			},
		},
	}
}
