package storagedriver

import (
	"fmt"

	"github.com/google/uuid"
)

// Pool names the storage-key namespace a given object lives under.
type Pool string

const (
	PoolUploads   Pool = "uploads"
	PoolFiles     Pool = "files"
	PoolArtifacts Pool = "artifacts"
)

// NewKey builds an opaque storage key of the form
// <workspaceId>/<projectId>/<pool>/<random>, the layout the registry uses
// regardless of which provider backs it.
func NewKey(workspaceID, projectID string, pool Pool) string {
	return fmt.Sprintf("%s/%s/%s/%s", workspaceID, projectID, pool, uuid.NewString())
}
