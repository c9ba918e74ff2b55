// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cndeploy/nodeprep/internal/swap"
)

func TestFormatReport(t *testing.T) {
	report := hostCheckReport{
		Swap: swap.Result{
			Plan: swap.Plan{{Kind: swap.SetSwappiness, Swappiness: 10}},
		},
	}

	out, err := formatReport(report, "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "set-swappiness")

	out, err = formatReport(report, "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"set-swappiness"`)

	_, err = formatReport(report, "toml")
	require.Error(t, err)
}
