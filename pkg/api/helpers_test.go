package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-bim/octopus/pkg/auth/principal"
)

func TestRequireScope(t *testing.T) {
	readOnly := &principal.Principal{UserID: "u1", Scopes: map[string]bool{"files:read": true}}
	require.NoError(t, requireScope(readOnly, "files:read"))
	require.Error(t, requireScope(readOnly, "files:write"))
}
