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
	"math"
	"time"

	"coolplant/pkg/pid"
)

// commandTowers activates up to stg.Demanded towers in staging order.
// Unavailable towers and towers inside their off cooldown are skipped
// without consuming a slot. Every tower not activated is commanded
// off; the runtime enforcer may reverse that afterwards.
func (e *Engine) commandTowers(now time.Time, sens Sensors, stg staging, st *State, snap *Snapshot) {
	activated := 0
	var on [NumTowers]bool

	for _, idx := range stg.Order {
		if activated >= stg.Demanded {
			break
		}
		i := idx - 1
		if !e.cfg.TowerAvailable[i] {
			continue
		}
		t := &st.Towers[i]

		if t.Timer.Mode == ModeOffCooldown && now.Sub(t.Timer.Since) < MinOffTime {
			e.log.Debug("tower %d blocked by off cooldown (%.0fs remaining)",
				idx, (MinOffTime - now.Sub(t.Timer.Since)).Seconds())
			continue
		}

		if t.Timer.Mode != ModeRunning {
			t.Timer = TowerTimer{Mode: ModeRunning, Since: now}
			t.Ramp = RampState{Current: VfdMin, Target: VfdMin, LastChange: now}
			t.PID = pid.State{LastOutput: VfdMin}
			e.log.Info("tower %d starting", idx)
		}

		speed := e.fanSpeed(now, sens, stg, t)
		enable := true

		// post-ramp coercion: a nonzero output below VfdMin cannot
		// turn the fan, so the drive is disabled outright once the
		// startup hold has passed
		if speed > 0 && speed < VfdMin && now.Sub(t.Timer.Since) >= MinRuntime {
			speed = 0
			enable = false
		}

		snap.Towers[i] = TowerCommand{
			VFDEnable:      enable,
			FanSpeed:       speed,
			IsolationValve: ValveOpen,
		}
		if enable {
			on[i] = true
			activated++
		}
	}

	for i := range snap.Towers {
		if !on[i] {
			snap.Towers[i] = TowerCommand{IsolationValve: ValveClose}
		}
	}
	snap.ActiveTowers = activated
}

// fanSpeed computes the ramp-filtered VFD voltage for a running tower.
func (e *Engine) fanSpeed(now time.Time, sens Sensors, stg staging, t *TowerState) float64 {
	tRun := now.Sub(t.Timer.Since)

	var target float64
	switch {
	case tRun < MinRuntime:
		// startup floor: hold at minimum through the protected window
		target = VfdMin

	case math.Abs(sens.HPSupply-sens.Setpoint) < 2:
		target = VfdMin

	default:
		res, err := pid.Compute(sens.HPSupply, sens.Setpoint, fanPIDParams, fanPIDInterval, t.PID)
		if err != nil {
			target = e.fanFallback(stg, t)
		} else {
			t.PID = res.State
			target = res.Output
		}
	}

	return rampFilter(now, &t.Ramp, target)
}

// fanFallback is the integrator-style proportional step used when the
// PID library errors: walk the last output toward the demand band.
func (e *Engine) fanFallback(stg staging, t *TowerState) float64 {
	switch {
	case stg.DemandPct > 50:
		t.PID.LastOutput = math.Min(t.PID.LastOutput+fallbackStep, VfdMax)
	case stg.DemandPct < 30:
		t.PID.LastOutput = math.Max(t.PID.LastOutput-fallbackStep, VfdMin)
	}
	e.log.Debug("fan PID fallback: %.2fV", t.PID.LastOutput)
	return t.PID.LastOutput
}

// rampFilter bounds the commanded voltage's rate of change: one step
// of at most RampStep volts per delay window (15 s rising, 20 s
// falling). The result is always within [VfdMin, VfdMax].
func rampFilter(now time.Time, r *RampState, target float64) float64 {
	r.Target = target

	delay := RampUpDelay
	if target < r.Current {
		delay = RampDownDelay
	}

	if now.Sub(r.LastChange) >= delay && target != r.Current {
		step := target - r.Current
		if step > RampStep {
			step = RampStep
		} else if step < -RampStep {
			step = -RampStep
		}
		r.Current += step
		r.LastChange = now
	}

	r.Current = clamp(r.Current, VfdMin, VfdMax)
	return r.Current
}

// enforceRuntime reverses commanded shutdowns that would violate the
// minimum-runtime guarantee, and begins the off cooldown for towers
// that are genuinely done.
func (e *Engine) enforceRuntime(now time.Time, sens Sensors, stg staging, st *State, snap *Snapshot) {
	for i := range st.Towers {
		t := &st.Towers[i]
		if t.Timer.Mode != ModeRunning || snap.Towers[i].VFDEnable {
			continue
		}

		tRun := now.Sub(t.Timer.Since)
		switch {
		case tRun < MinRuntime:
			// short-cycling damages the VFD and fan bearings; hold on
			e.forceOn(i, snap)

		case stg.DeltaT < stopDeltaF || sens.HPSupply < hpSupplyMinF:
			t.Timer = TowerTimer{Mode: ModeOffCooldown, Since: now}
			snap.Towers[i] = TowerCommand{IsolationValve: ValveClose}
			e.log.Info("tower %d stopping, off cooldown started", i+1)

		default:
			// minimum met but conditions still warrant cooling; keep
			// the tower on rather than oscillating near setpoint
			e.forceOn(i, snap)
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

func (e *Engine) forceOn(i int, snap *Snapshot) {
	snap.Towers[i] = TowerCommand{
		VFDEnable:      true,
		FanSpeed:       VfdMin,
		IsolationValve: ValveOpen,
	}
}
