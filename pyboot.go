// Package pyboot is a startup wrapper for Python entry points. It prints a
// short launch banner, guarantees PYTHONUNBUFFERED=1 in the child
// environment, then hands control to the configured entry point and exits
// with its status.
package pyboot

import (
	"github.com/streamingfast/logging"
)

var zlog, _ = logging.PackageLogger("pyboot", "github.com/botworks/pyboot")
