package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	// The cgroup v1 default for limit_in_bytes, meaning memory is not
	// restricted.
	unrestrictedMemoryLimit = 9223372036854771712

	// cgroup v2 reports an unrestricted limit as "max"
	unrestrictedMemoryMax = "max"
)

var cgroupMemoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",                   // v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // v1
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	return getTotalMemory(memory.TotalMemory(), cgroupMemoryLimitLocations)
}

func getTotalMemory(hostMemory uint64, limitLocations []string) uint64 {
	for _, location := range limitLocations {
		raw, err := os.ReadFile(location)
		if err != nil {
			continue
		}

		value := strings.TrimSpace(string(raw))
		if value == unrestrictedMemoryMax {
			return hostMemory
		}

		limit, err := strconv.ParseUint(value, 10, 64)
		if err != nil || limit == unrestrictedMemoryLimit {
			return hostMemory
		}
		if hostMemory > 0 && limit > hostMemory {
			return hostMemory
		}
		return limit
	}
	return hostMemory
}
