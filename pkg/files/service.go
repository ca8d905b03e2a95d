// Package files implements the file registry and the reserve -> upload ->
// commit state machine for user content: io.Copy streaming against an
// io.ReadCloser, a thin service wrapping config plus a pluggable storage
// backend, over a registry-plus-content-addressed-bytes model.
package files

import (
	"context"
	"fmt"

	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/storagedriver"
)

// Service is the file registry and upload state machine.
type Service struct {
	store           *persistence.Store
	providers       map[string]storagedriver.Provider
	defaultProvider string
	quota           config.Quota
	reserveTTL      int // hours
}

// New constructs a Service. providers must contain an entry keyed by
// defaultProvider; every other key is kept around so files written under
// a provider no longer configured as default can still be read.
func New(store *persistence.Store, providers map[string]storagedriver.Provider, defaultProvider string, quota config.Quota, reserveTTLHours int) (*Service, error) {
	if _, ok := providers[defaultProvider]; !ok {
		return nil, fmt.Errorf("files: no storage provider registered for default %q", defaultProvider)
	}
	return &Service{
		store: store, providers: providers, defaultProvider: defaultProvider,
		quota: quota, reserveTTL: reserveTTLHours,
	}, nil
}

func (s *Service) provider(name string) (storagedriver.Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, errtypes.StorageInconsistency("no provider registered: " + name)
	}
	return p, nil
}

// projectWorkspace resolves a project's owning workspace, used for key
// namespacing and quota accounting.
func (s *Service) projectWorkspace(ctx context.Context, projectID string) (string, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.WorkspaceID, nil
}

// storageKey builds the opaque <workspaceId>/<projectId>/<pool>/<random>
// key storagedriver.Provider documents.
func storageKey(workspaceID, projectID, pool string) string {
	return fmt.Sprintf("%s/%s/%s/%s", workspaceID, projectID, pool, domain.NewID())
}
