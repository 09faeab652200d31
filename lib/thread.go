package lib

/* thread.go contains functions useful for multi-threading. */

import (
	"runtime"
)

// SetThreads sets the number of threads used by the per-particle accumulation
// loops. n = -1 uses every core on the node.
func SetThreads(n int) {
	if n == -1 {
		n = runtime.NumCPU()
	} else if n > runtime.NumCPU() {
		ExternalErrorf("%d threads requested, but your system only has %d "+
			"cores per node. If you want treeforce to use the maximum number "+
			"of threads per node, set Threads=-1.", n, runtime.NumCPU())
	}

	runtime.GOMAXPROCS(n)
}
