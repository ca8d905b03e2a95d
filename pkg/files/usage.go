package files

import "context"

// Usage reports a workspace's current byte consumption against its quota.
type Usage struct {
	UsedBytes  int64
	LimitBytes *int64 // nil means unlimited
}

// GetUsage computes current workspace usage, resolving the effective quota
// as the workspace's own override if set, else the service default.
func (s *Service) GetUsage(ctx context.Context, workspaceID string) (*Usage, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	used, err := s.store.SumWorkspaceBytes(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	limit := ws.QuotaBytes
	if limit == nil {
		limit = s.quota.WorkspaceBytes
	}
	return &Usage{UsedBytes: used, LimitBytes: limit}, nil
}
