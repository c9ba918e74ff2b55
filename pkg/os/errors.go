// SPDX-License-Identifier: Apache-2.0

package os

import "github.com/joomcode/errorx"

var (
	Errors = errorx.NewNamespace("nodeprep.os")

	ErrSystemdConnection  = Errors.NewType("systemd_connection")
	ErrSystemdOperation   = Errors.NewType("systemd_operation")
	ErrSwapDeviceNotFound = Errors.NewType("swap_device_not_found")

	ServiceProperty = errorx.RegisterProperty("service")
)
