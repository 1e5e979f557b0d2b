// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockvault/blockvaultd/chain"
	"github.com/blockvault/blockvaultd/configuration"
	"github.com/blockvault/blockvaultd/schema"
)

const sampleConfiguration = `
local M = {}

M.data_directory = "."
M.chain = "Regtest"
M.db_type = "super"
M.block_files = "raw"

M.database = {
    directory = "db"
}

M.logging = {
    size = 1048576,
    count = 20,
    console = true,
    levels = {
        DEFAULT = "info"
    }
}

return M
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	name := filepath.Join(dir, "blockvaultd.conf")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestGetConfiguration(t *testing.T) {
	name := writeConfig(t, sampleConfiguration)

	options, err := configuration.GetConfiguration(name)
	require.NoError(t, err)

	assert.Equal(t, chain.Regtest, options.Chain)
	assert.Equal(t, "raw", filepath.Base(options.BlockFileDirectory))
	assert.True(t, filepath.IsAbs(options.BlockFileDirectory))
	assert.True(t, filepath.IsAbs(options.Database.Directory))
	assert.DirExists(t, options.Database.Directory)
	assert.Equal(t, 20, options.Logging.Count)
	assert.True(t, options.Logging.Console)
	assert.Equal(t, "info", options.Logging.Levels["DEFAULT"])

	dbType, err := options.DBTypeValue()
	require.NoError(t, err)
	assert.Equal(t, schema.DBTypeSuper, dbType)
}

func TestGetConfigurationDefaults(t *testing.T) {
	name := writeConfig(t, `
local M = {}
M.data_directory = "."
M.chain = "Main"
return M
`)

	options, err := configuration.GetConfiguration(name)
	require.NoError(t, err)

	dbType, err := options.DBTypeValue()
	require.NoError(t, err)
	assert.Equal(t, schema.DBTypeFull, dbType)
	assert.Equal(t, "blockvaultd.log", options.Logging.File)
}

func TestGetConfigurationRejectsUnknownChain(t *testing.T) {
	name := writeConfig(t, `
local M = {}
M.data_directory = "."
M.chain = "Nonsense"
return M
`)

	_, err := configuration.GetConfiguration(name)
	assert.Error(t, err)
}

func TestGetConfigurationRejectsUnknownDBType(t *testing.T) {
	name := writeConfig(t, `
local M = {}
M.data_directory = "."
M.chain = "Main"
M.db_type = "gigantic"
return M
`)

	_, err := configuration.GetConfiguration(name)
	assert.Error(t, err)
}
