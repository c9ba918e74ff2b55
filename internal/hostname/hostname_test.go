// SPDX-License-Identifier: Apache-2.0

package hostname

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockHostnameState(t *testing.T, current string) (etcPath *string, kernelCalls *[]string) {
	t.Helper()

	p := filepath.Join(t.TempDir(), "hostname")
	origPath, origSet, origGet := etcHostnamePath, sysSethostname, osHostname
	t.Cleanup(func() { etcHostnamePath, sysSethostname, osHostname = origPath, origSet, origGet })

	etcHostnamePath = p
	var calls []string
	sysSethostname = func(b []byte) error {
		calls = append(calls, string(b))
		return nil
	}
	osHostname = func() (string, error) { return current, nil }

	return &p, &calls
}

func TestSet_ChangesKernelAndPersists(t *testing.T) {
	p, calls := mockHostnameState(t, "old-name")

	require.NoError(t, Set("relay1"))

	assert.Equal(t, []string{"relay1"}, *calls)
	data, err := os.ReadFile(*p)
	require.NoError(t, err)
	assert.Equal(t, "relay1\n", string(data))
}

func TestSet_CurrentNameSkipsKernelCall(t *testing.T) {
	p, calls := mockHostnameState(t, "relay1")
	require.NoError(t, os.WriteFile(*p, []byte("relay1\n"), 0644))

	require.NoError(t, Set("relay1"))

	assert.Empty(t, *calls)
}

func TestSet_PersistsWhenFileStale(t *testing.T) {
	p, calls := mockHostnameState(t, "relay1")
	require.NoError(t, os.WriteFile(*p, []byte("old-name\n"), 0644))

	require.NoError(t, Set("relay1"))

	assert.Empty(t, *calls) // kernel already correct
	data, err := os.ReadFile(*p)
	require.NoError(t, err)
	assert.Equal(t, "relay1\n", string(data))
}
