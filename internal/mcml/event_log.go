package mcml

import "sync/atomic"

type Event uint8

const (
	Launch      Event = iota // photon launched
	Absorb                   // interior interaction
	Reflect                  // Fresnel reflection at an interface
	TIR                      // total internal reflection
	Transmit                 // crossed into a neighbouring layer
	Reflected                // escaped through the top surface
	Transmitted              // escaped through the bottom surface
	Survive                  // won the roulette
	Kill                     // lost the roulette
	numEvents
)

var eventNames = [numEvents]string{
	"launch", "absorb", "reflect", "tir", "transmit",
	"reflected", "transmitted", "survive", "kill",
}

func (e Event) String() string {
	if e < numEvents {
		return eventNames[e]
	}
	return "unknown"
}

// EventLog counts photon events. Counting only happens when Debug is set.
type EventLog struct {
	n [numEvents]atomic.Int64
}

var events = &EventLog{}

func logEvent(e Event) {
	if Debug {
		events.n[e].Add(1)
	}
}

// Count returns how many events of kind e were logged.
func (l *EventLog) Count(e Event) int64 { return l.n[e].Load() }

// Events returns the process-wide event log.
func Events() *EventLog { return events }

// Reset zeroes every counter.
func (l *EventLog) Reset() {
	for i := range l.n {
		l.n[i].Store(0)
	}
}

func eventStats() {
	for e := Event(0); e < numEvents; e++ {
		DebugLog("Photon event %s: %d", e, events.Count(e))
	}
}
