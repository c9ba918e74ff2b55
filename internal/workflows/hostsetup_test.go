// SPDX-License-Identifier: Apache-2.0

package workflows

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cndeploy/nodeprep/internal/config"
)

func TestNewHostSetupWorkflowBuilds(t *testing.T) {
	wb, err := NewHostSetupWorkflow(config.Default()).Build()
	require.NoError(t, err)
	require.NotNil(t, wb)
}
