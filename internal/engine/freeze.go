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

// commandValves positions the tempering and bypass valves. Above the
// freeze-protection threshold both sit at minimum; below it a PID on
// the averaged heat-pump loop temperature holds the loop warm, with
// hard floors by outdoor band and a slew limit on movement.
func (e *Engine) commandValves(now time.Time, sens Sensors, ui UICommands, st *State, snap *Snapshot) {
	hasBypass := ui.BypassValvePosition != nil
	hasTempering := ui.TemperingValvePosition != nil

	if hasBypass {
		snap.BypassValvePosition = clamp(*ui.BypassValvePosition, ValveMin, ValveMax)
	}
	if hasTempering {
		snap.TemperingValvePosition = clamp(*ui.TemperingValvePosition, ValveMin, ValveMax)
	}
	if hasBypass && hasTempering {
		return
	}

	if sens.Outdoor >= valveRegimeF {
		if !hasBypass {
			snap.BypassValvePosition = ValveMin
		}
		if !hasTempering {
			snap.TemperingValvePosition = ValveMin
		}
		st.ValvePID = pid.State{LastOutput: ValveMin}
		return
	}

	// cold regime: temper the averaged heat-pump loop toward 45 °F
	prev := st.ValvePID.LastOutput
	loop := (sens.HPSupply + sens.HPReturn) / 2

	var raw float64
	res, err := pid.Compute(loop, valveSetpointF, valvePIDParams, valvePIDInterval, st.ValvePID)
	if err != nil {
		e.log.Error("valve PID error: %v, using fixed fallback", err)
		if sens.Outdoor < valveFloorLoF {
			raw = valveFailLo
		} else {
			raw = valveFailHi
		}
	} else {
		st.ValvePID = res.State
		raw = res.Output
	}

	// outdoor-band floors keep the valve open enough to matter
	if sens.Outdoor < valveFloorLoF {
		raw = max(raw, valveFloorLo)
	} else if sens.Outdoor < valveFloorHiF {
		raw = max(raw, valveFloorHi)
	}

	// slew limit: at most valveSlewStep volts of travel per tick
	out := clamp(raw, prev-valveSlewStep, prev+valveSlewStep)
	out = clamp(out, ValveMin, ValveMax)
	st.ValvePID.LastOutput = out

	if !hasTempering {
		snap.TemperingValvePosition = out
	}
	if !hasBypass {
		snap.BypassValvePosition = ValveMin
	}
}

// commandHeaters runs the freeze-protection heater hysteresis: all
// three heaters on below 35 °F, off above 45 °F, held in between.
func (e *Engine) commandHeaters(sens Sensors, st *State, snap *Snapshot) {
	switch {
	case sens.Outdoor < heaterOnF:
		if !st.HeatersOn {
			e.log.Info("freeze-protection heaters on (outdoor %.1f°F)", sens.Outdoor)
		}
		st.HeatersOn = true
	case sens.Outdoor > heaterOffF:
		if st.HeatersOn {
			e.log.Info("freeze-protection heaters off (outdoor %.1f°F)", sens.Outdoor)
		}
		st.HeatersOn = false
	}
	for i := range snap.Towers {
		snap.Towers[i].HeaterEnable = st.HeatersOn
	}
}
