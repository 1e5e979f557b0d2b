// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockvault/blockvaultd/fault"
)

func TestErrorClasses(t *testing.T) {
	assert.True(t, fault.IsErrNotFound(fault.ErrBlockNotFound))
	assert.True(t, fault.IsErrNotFound(fault.ErrTxNotFound))
	assert.True(t, fault.IsErrCorrupt(fault.ErrWrongNetworkMagic))
	assert.True(t, fault.IsErrCorrupt(fault.ErrTruncatedInput))
	assert.True(t, fault.IsErrReorg(fault.ErrUnknownParentBlock))
	assert.True(t, fault.IsErrInvariant(fault.ErrDoubleValidDupID))
	assert.True(t, fault.IsErrProcess(fault.ErrDatabaseIsNotOpen))
	assert.True(t, fault.IsErrExists(fault.ErrAlreadyInitialised))

	assert.False(t, fault.IsErrCorrupt(fault.ErrBlockNotFound))
	assert.False(t, fault.IsErrNotFound(fault.ErrWrongNetworkMagic))
}

func TestErrorComparison(t *testing.T) {
	err := error(fault.ErrTxNotFound)
	assert.Equal(t, fault.ErrTxNotFound, err)
	assert.NotEqual(t, fault.ErrTxOutNotFound, err)
	assert.Equal(t, "transaction not found", err.Error())
}
