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

const (
	NumTowers = 3
	NumPumps  = 3

	// Fan VFD output range, volts. Outputs below VfdMin would stall
	// the drive and are coerced to 0 V instead.
	VfdMin = 2.6
	VfdMax = 4.8

	// Warning-level speed clamp, volts.
	VfdWarnClamp = 3.5

	// Tempering and bypass valve output range, volts.
	ValveMin = 2.0
	ValveMax = 10.0

	// Staging thresholds, °F above setpoint.
	stageDelta1 = 10.0
	stageDelta2 = 20.0
	stageDelta3 = 30.0
	stageDelta4 = 35.0

	// Hard cold-shutdown conditions.
	shutdownDelta  = -15.0
	hpSupplyMinF   = 65.0
	twrSupplyMinF  = 50.0
	continueDeltaF = -5.0
	stopDeltaF     = -10.0

	// Equipment-protection timings.
	MinRuntime       = 420 * time.Second
	MinOffTime       = 180 * time.Second
	RampUpDelay      = 15 * time.Second
	RampDownDelay    = 20 * time.Second
	RampStep         = 0.3 // volts per ramp step
	PumpOverlap      = 5 * time.Second
	RotationPeriod   = 7 * 24 * time.Hour
	PumpFailDebounce = 30 * time.Second

	// Current limits, amps.
	PumpFailCurrent = 10.0
	PumpMaxCurrent  = 45.0
	VfdWarnCurrent  = 40.0
	VfdCritCurrent  = 45.0

	// Vibration limits, mm/s RMS (ISO 10816 zone C/D boundaries).
	VibWarn = 4.5
	VibCrit = 7.1

	// Freeze-protection bands, °F outdoor.
	valveRegimeF  = 42.0
	heaterOnF     = 35.0
	heaterOffF    = 45.0
	valveFloorLoF = 35.0
	valveFloorHiF = 40.0

	// Tempering valve control.
	valveSetpointF = 45.0
	valveSlewStep  = 0.4 // volts per tick
	valveFloorLo   = 6.8
	valveFloorHi   = 5.2
	valveFailLo    = 7.6
	valveFailHi    = 6.0

	// PID intervals, seconds. The runner ticks every 7 s; the fan
	// loops integrate over the ramp-step delay.
	fanPIDInterval   = 15.0
	valvePIDInterval = 7.0

	// Integrator-style fallback step when the PID library errors.
	fallbackStep = 0.1
)

var fanPIDParams = pid.Params{
	Kp: 0.15, Ki: 0.02, Kd: 0,
	Min: VfdMin, Max: VfdMax,
	ReverseActing: true,
	MaxIntegral:   50,
}

var valvePIDParams = pid.Params{
	Kp: 2.5, Ki: 0.15, Kd: 0.05,
	Min: ValveMin, Max: ValveMax,
	MaxIntegral: 50,
}
