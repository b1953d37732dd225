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

import "fmt"

// monitor raises warning-level faults and clamps the offending fan
// speeds. It runs before the manual merge so an explicit operator
// speed command is not overridden by a clamp.
func (e *Engine) monitor(sens Sensors, snap *Snapshot) {
	for i := 0; i < NumTowers; i++ {
		warned := false

		if !e.cfg.Bypass.Current {
			for _, amps := range sens.VFDCurrent[i] {
				if amps >= VfdWarnCurrent && amps < VfdCritCurrent {
					snap.addFault(fmt.Sprintf("TOWER%d_HIGH_VFD_CURRENT", i+1))
					warned = true
					break
				}
			}
		}
		if !e.cfg.Bypass.Vibration {
			if v := sens.Vibration[i]; v >= VibWarn && v <= VibCrit {
				snap.addFault(fmt.Sprintf("TOWER%d_HIGH_VIBRATION", i+1))
				warned = true
			}
		}

		if warned {
			snap.raiseWarning()
			if snap.Towers[i].FanSpeed > VfdWarnClamp {
				e.log.Info("tower %d speed clamped to %.1fV on warning", i+1, VfdWarnClamp)
				snap.Towers[i].FanSpeed = VfdWarnClamp
			}
		}
	}
}

// applyOverrides merges the operator commands last, so they are
// authoritative over every automatic decision except the safety gate.
func (e *Engine) applyOverrides(ui UICommands, snap *Snapshot) {
	if ui.ControlMode != nil {
		snap.ControlMode = *ui.ControlMode
	}

	for i := range ui.Towers {
		ov := ui.Towers[i]
		if ov.VFDEnable != nil {
			snap.Towers[i].VFDEnable = *ov.VFDEnable
			if !*ov.VFDEnable {
				snap.Towers[i].FanSpeed = 0
				snap.Towers[i].IsolationValve = ValveClose
			} else if snap.Towers[i].IsolationValve != ValveOpen {
				snap.Towers[i].IsolationValve = ValveOpen
			}
		}
		if ov.FanSpeed != nil {
			snap.Towers[i].FanSpeed = coerceSpeed(*ov.FanSpeed)
		}
		if ov.HeaterEnable != nil {
			snap.Towers[i].HeaterEnable = *ov.HeaterEnable
		}
	}

	if ui.BypassValvePosition != nil {
		snap.BypassValvePosition = clamp(*ui.BypassValvePosition, ValveMin, ValveMax)
	}
	if ui.TemperingValvePosition != nil {
		snap.TemperingValvePosition = clamp(*ui.TemperingValvePosition, ValveMin, ValveMax)
	}

	if ui.SystemEnabled != nil {
		snap.SystemEnabled = *ui.SystemEnabled
		if !snap.SystemEnabled {
			// fans and pumps off; heaters keep protecting the sumps
			for i := range snap.Towers {
				snap.Towers[i].VFDEnable = false
				snap.Towers[i].FanSpeed = 0
				snap.Towers[i].IsolationValve = ValveClose
			}
			for i := range snap.PumpEnable {
				snap.PumpEnable[i] = false
			}
			snap.ActiveTowers = 0
		}
	}

	active := 0
	for i := range snap.Towers {
		if snap.Towers[i].VFDEnable {
			active++
		}
	}
	snap.ActiveTowers = active
}

// coerceSpeed maps an operator speed request into the legal output
// set {0} ∪ [VfdMin, VfdMax]. Sub-minimum requests round up: the
// operator asked for rotation and anything below VfdMin stalls.
func coerceSpeed(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v < VfdMin {
		return VfdMin
	}
	if v > VfdMax {
		return VfdMax
	}
	return v
}
