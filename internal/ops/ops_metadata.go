// SPDX-License-Identifier: MIT

package ops

import (
	"context"
	"fmt"

	"github.com/tizonia-project/tizonia-go/internal/ilcore"
)

// RetrieveMetadata iterates OMX_IndexConfigMetadataItemCount /
// OMX_IndexConfigMetadataItem on each handle and emits every (key,
// value) pair to the outbound callback. The very first pair emitted
// across the whole handle list is flagged as the heading (spec
// section 6, metadata heading framing).
func (o *Ops) RetrieveMetadata(ctx context.Context) error {
	o.mu.Lock()
	handles := append([]ilcore.ComponentHandle(nil), o.handles...)
	o.mu.Unlock()

	headingEmitted := false
	for _, h := range handles {
		countAny, err := o.core.GetConfig(ctx, h, ilcore.IndexConfigMetadataItemCount)
		if err != nil {
			return o.fail(fmt.Errorf("metadata count for %s: %w", h, err))
		}
		count, _ := countAny.(int)

		for i := 0; i < count; i++ {
			item, err := o.core.GetMetadataItem(ctx, h, i)
			if err != nil {
				return o.fail(fmt.Errorf("metadata item %d for %s: %w", i, h, err))
			}
			isHeading := !headingEmitted
			headingEmitted = true
			o.outbound.OnMetadata(item, isHeading)
		}
	}
	return nil
}
