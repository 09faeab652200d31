/*package lib contains glue shared by treeforce and the standalone tools in
scripts/ and examples/: fatal error reporting, the system byte order probe,
and the run configuration. Almost all of the heavy lifting is done by lib/'s
subpackages.
*/
package lib

import (
	"encoding/binary"
	"unsafe"
)

var (
	// Version is the version of the software. Messages produced by builds
	// with different Versions must never be mixed in one run.
	Version uint64 = 0x1
)

// SystemByteOrder returns the byte order of the host. Cell messages are
// written in system order: every rank of a run is the same build on the same
// architecture, so no byte swapping is ever needed on the receive side.
func SystemByteOrder() binary.ByteOrder {
	// See https://stackoverflow.com/questions/51332658/any-better-way-to-check-endianness-in-go/51332762
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	} else {
		return binary.LittleEndian
	}
}
