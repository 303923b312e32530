// Package infra implements the pipeline's external collaborators: frame
// sources, the video sink, the detector client, storage discovery, the
// encrypted catalog, and event sinks.
package infra

import (
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// FindOtherInstances returns PIDs of other running processes with the
// given name, excluding the current process. Used to warn when a second
// daemon would fight over the capture device.
func FindOtherInstances(name string) ([]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	self := int32(os.Getpid())
	var found []int32
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		pname, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if strings.EqualFold(pname, name) {
			found = append(found, p.Pid)
		}
	}
	return found, nil
}
