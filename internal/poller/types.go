// internal/poller/types.go
package poller

import "github.com/tamzrod/modbus2mqtt/internal/rtu"

// Phase is the acquisition plan being walked.
// Info runs once, then Data repeats. The switch is one-way.
type Phase uint8

const (
	PhaseInfo Phase = iota
	PhaseData
)

func (p Phase) String() string {
	if p == PhaseInfo {
		return "info"
	}
	return "data"
}

// Query is one register pair to read and where its value goes.
type Query struct {
	Register uint16
	Apply    func(v rtu.Value)
}

// CycleFunc is called when every query of a phase has been answered.
// It runs with the sequencer locked and must not call back into it.
type CycleFunc func(Phase)
