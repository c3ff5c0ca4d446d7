// SPDX-License-Identifier: MIT

package ops

import (
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// RecordFatalError sets the sticky internal error to (err, a message
// naming the offending handle and port), mirroring tizgraphops.hpp's
// record_fatal_error. It does not itself trigger any transition: the
// AllOk.Err -> Unloaded edge is the FSM's concern, driven by
// IsLastOpSucceeded/InternalError after this has run.
func (o *Ops) RecordFatalError(h ilcore.ComponentHandle, code ilcore.ErrorCode, port int) {
	msg := fmt.Sprintf("component %q port %d: %s", h.String(), port, code)
	o.fail(&ilcore.Err{Code: code, Msg: msg})
	o.logf("fatal error recorded", "handle", h.String(), "port", port, "code", code.String())
}

// DoError is the action bound to the AllOk.Err -> Unloaded edge (spec
// section 4.5): it reports the sticky internal error to the
// application through Outbound.OnError, mirroring tizgraphops.hpp's
// do_error. It does not destroy any handle; the fatal OmxErr edge runs
// DestroyGraph as a separate action.
func (o *Ops) DoError() {
	e := o.InternalError()
	o.outbound.OnError(e.Code, e.Msg)
}
