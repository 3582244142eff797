/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// streamOptimizedMarker is the descriptor substring the reader looks for
// to decide whether a file is a stream-optimized VMDK.
const streamOptimizedMarker = `createType="streamOptimized"`

// descriptorTemplate is the fixed template the writer emits. %s is a CID,
// the two %d are total capacity in sectors and the computed cylinder
// count (capacity / 63 / 255).
const descriptorTemplate = `# Disk DescriptorFile
version=1
CID=%s
parentCID=ffffffff
createType="streamOptimized"

# Extent description
RDONLY %d SPARSE "disk.vmdk"

#DDB
ddb.virtualHWVersion = "4"
ddb.geometry.cylinders = "%d"
ddb.geometry.heads = "255"
ddb.geometry.sectors = "63"
ddb.adapterType = "lsilogic"
`

// newDescriptorCID returns an 8 hex character disk CID, replacing the
// teacher's hand-rolled math/rand generator with google/uuid.
func newDescriptorCID() string {
	id := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", id[0:4]))
}

// buildDescriptor renders the fixed descriptor template for a disk of the
// given capacity in sectors.
func buildDescriptor(capacitySectors int64) []byte {
	cylinders := capacitySectors / 63 / 255
	text := fmt.Sprintf(descriptorTemplate, newDescriptorCID(), capacitySectors, cylinders)
	return []byte(text)
}

// isStreamOptimized reports whether descriptor text declares
// createType="streamOptimized".
func isStreamOptimized(descriptor []byte) bool {
	return strings.Contains(string(descriptor), streamOptimizedMarker)
}
