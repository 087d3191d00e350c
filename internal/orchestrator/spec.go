// Package orchestrator launches and supervises the processes of one
// run: the producer simulator, the relays, and in co-simulation the
// consumer simulator. Children are sequenced on readiness handshakes
// and joined at the end; any non-zero exit fails the run.
package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"tandem/internal/config"
)

// Spec describes one child process. Command is the full argv; the
// launch contract appends the results root (and per-role device ids)
// so children derive every other path from the published run
// configuration.
type Spec struct {
	Name    string
	Command []string
	Dir     string
}

func feedSpec(run config.Run, tree config.Tree) Spec {
	return Spec{
		Name:    "feed",
		Command: append(append([]string{}, run.FeedCommand...), "--results", tree.Root),
		Dir:     tree.FeedDir(),
	}
}

func relaySpec(run config.Run, tree config.Tree, deviceID int) Spec {
	return Spec{
		Name:    fmt.Sprintf("relay_%d", deviceID),
		Command: append(append([]string{}, run.RelayCommand...), "--results", tree.Root, "--device", strconv.Itoa(deviceID)),
		Dir:     tree.RelayDir(),
	}
}

func sinkSpec(run config.Run, tree config.Tree, deviceIDs []int) Spec {
	ids := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		ids[i] = strconv.Itoa(id)
	}
	return Spec{
		Name:    "sink",
		Command: append(append([]string{}, run.SinkCommand...), "--results", tree.Root, "--devices", strings.Join(ids, ",")),
		Dir:     tree.SinkDir(),
	}
}
