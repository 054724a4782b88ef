package door

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	overrideToggles = metrics.GetOrCreateCounter("door_override_toggles_total")
	eventsDropped   = metrics.GetOrCreateCounter("door_events_dropped_total")
	sessionsActive  = metrics.GetOrCreateCounter("door_sessions_active")
	openDuration    = metrics.GetOrCreateSummary("door_open_duration_seconds")
)

func motionTicks(detected bool) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`door_motion_ticks_total{detected="%t"}`, detected))
}

func faultTicks(fault bool) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`door_fault_ticks_total{fault="%t"}`, fault))
}

func transitions(to DoorState) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`door_transitions_total{to=%q}`, to))
}

func closeChecks(result string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`door_close_checks_total{result=%q}`, result))
}

// observeOpenDuration records how long the door stayed open.
func observeOpenDuration(openedAt time.Time) {
	if openedAt.IsZero() {
		return
	}
	openDuration.UpdateDuration(openedAt)
}
