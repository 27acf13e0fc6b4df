package orchestrator

import (
	"os"
	"strings"
)

// AllowHostAutonomousEnv opts out of the container requirement for
// autonomous mode.
const AllowHostAutonomousEnv = "FORGE_ALLOW_HOST_AUTONOMOUS"

// AcceptTheRiskValue is the only value AllowHostAutonomousEnv accepts.
const AcceptTheRiskValue = "I_ACCEPT_THE_RISK"

var containerRuntimeMarkers = []string{"docker", "containerd", "kubepods", "lxc"}

// inContainer is the sole sandbox guarantee for autonomous mode: a
// container indicator file, a container runtime named in the init
// cgroup, or the explicit opt-out env var.
func inContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		text := strings.ToLower(string(data))
		for _, marker := range containerRuntimeMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
	}
	return os.Getenv(AllowHostAutonomousEnv) == AcceptTheRiskValue
}

// checkAutonomousPreconditions enforces the container requirement when
// autonomousMode is requested.
func checkAutonomousPreconditions(autonomousMode bool) error {
	if !autonomousMode {
		return nil
	}
	if !inContainer() {
		return &ContainerRequiredError{}
	}
	return nil
}
