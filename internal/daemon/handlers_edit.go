package daemon

import (
	"context"
)

type renameParams struct {
	WorkspaceRoot string `json:"workspace_root"`
	Path          string `json:"path"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	NewName       string `json:"new_name"`
}

func (s *Server) handleRename(ctx context.Context, p renameParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	if p.Path == "" {
		return nil, invalidParams("missing path")
	}
	if p.Line <= 0 {
		return nil, invalidParams("missing line")
	}
	if p.NewName == "" {
		return nil, invalidParams("missing new_name")
	}
	return s.refactor.Rename(ctx, p.WorkspaceRoot, p.Path, p.Line, p.Column, p.NewName)
}

type moveFileParams struct {
	WorkspaceRoot string `json:"workspace_root"`
	OldPath       string `json:"old_path"`
	NewPath       string `json:"new_path"`
}

func (s *Server) handleMoveFile(ctx context.Context, p moveFileParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	if p.OldPath == "" {
		return nil, invalidParams("missing old_path")
	}
	if p.NewPath == "" {
		return nil, invalidParams("missing new_path")
	}
	return s.refactor.MoveFile(ctx, p.WorkspaceRoot, p.OldPath, p.NewPath)
}
