// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package engine

import (
	"time"

	"coolplant/pkg/pid"
)

// TowerMode is the run-state of one tower. Exactly one timer applies
// per mode: Since is the start instant while Running, the stop instant
// while OffCooldown, and unused while Idle.
type TowerMode int

const (
	ModeIdle TowerMode = iota
	ModeRunning
	ModeOffCooldown
)

func (m TowerMode) String() string {
	switch m {
	case ModeRunning:
		return "running"
	case ModeOffCooldown:
		return "off-cooldown"
	default:
		return "idle"
	}
}

type TowerTimer struct {
	Mode  TowerMode `json:"mode"`
	Since time.Time `json:"since"`
}

// RampState carries the VFD output filter between ticks.
type RampState struct {
	Current    float64   `json:"current_voltage"`
	Target     float64   `json:"target_voltage"`
	LastChange time.Time `json:"last_change"`
}

type TowerState struct {
	Timer TowerTimer `json:"timer"`
	Ramp  RampState  `json:"ramp"`
	PID   pid.State  `json:"pid"`
}

// Changeover is the record of an in-progress pump swap. Both pumps run
// until the overlap window elapses, then Active advances to NewPump.
type Changeover struct {
	NewPump int       `json:"new_pump"`
	Start   time.Time `json:"start"`
}

type PumpState struct {
	Active        int              `json:"active"`
	RotationStart time.Time        `json:"rotation_start"`
	Changeover    *Changeover      `json:"changeover,omitempty"`
	FailoverCount int              `json:"failover_count"`
	LastFailover  time.Time        `json:"last_failover"`
	RuntimeHours  [NumPumps]float64 `json:"runtime_hours"`
}

// LoopTemps holds the four loop temperatures in °F.
type LoopTemps struct {
	TowerSupply float64 `json:"tower_supply"`
	TowerReturn float64 `json:"tower_return"`
	HPReturn    float64 `json:"hp_return"`
	HPSupply    float64 `json:"hp_supply"`
}

// State is the carried state threaded across ticks. It is owned by the
// caller; the engine mutates it in place and retains no reference
// after Step returns.
type State struct {
	LeadTower         int       `json:"lead_tower"`
	LeadRotationStart time.Time `json:"lead_rotation_start"`

	Towers [NumTowers]TowerState `json:"towers"`
	Pump   PumpState             `json:"pump"`

	ValvePID  pid.State `json:"valve_pid"`
	HeatersOn bool      `json:"heaters_on"`

	LastGood LoopTemps `json:"last_good_temps"`
}

// Init fills any unset fields with their defaults. It is idempotent
// and runs at the top of every tick so a zero State is always a valid
// starting point.
func (s *State) Init(now time.Time) {
	if s.LeadTower < 1 || s.LeadTower > NumTowers {
		s.LeadTower = 1
	}
	if s.LeadRotationStart.IsZero() {
		s.LeadRotationStart = now
	}
	if s.Pump.Active < 1 || s.Pump.Active > NumPumps {
		s.Pump.Active = 1
	}
	if s.Pump.RotationStart.IsZero() {
		s.Pump.RotationStart = now
	}
	if s.LastGood == (LoopTemps{}) {
		s.LastGood = LoopTemps{
			TowerSupply: 75,
			TowerReturn: 85,
			HPReturn:    85,
			HPSupply:    75,
		}
	}
	if s.ValvePID.LastOutput == 0 {
		s.ValvePID.LastOutput = ValveMin
	}
	for i := range s.Towers {
		if s.Towers[i].PID.LastOutput == 0 {
			s.Towers[i].PID.LastOutput = VfdMin
		}
	}
}

// clone deep-copies the state so Step can restore it on an internal
// panic. Everything is value-copied except the changeover record.
func (s *State) clone() State {
	out := *s
	if s.Pump.Changeover != nil {
		co := *s.Pump.Changeover
		out.Pump.Changeover = &co
	}
	return out
}
