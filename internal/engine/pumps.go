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

import "time"

// commandPumps keeps exactly one circulation pump running, with weekly
// rotation and failure-triggered failover through a short overlap so
// the loop never loses flow. The pump runs whenever the system is
// enabled: the freeze-protection tempering loop needs circulation even
// at zero cooling demand.
func (e *Engine) commandPumps(now time.Time, sens Sensors, st *State, snap *Snapshot) {
	ps := &st.Pump

	// failure detection: the active pump should be drawing current
	if ps.Changeover == nil && !e.cfg.Bypass.PumpStatus {
		if sens.PumpCurrent[ps.Active-1] < PumpFailCurrent &&
			now.Sub(ps.LastFailover) > PumpFailDebounce {
			if next, ok := e.nextAvailablePump(ps.Active); ok && next != ps.Active {
				e.log.Error("pump %d current %.1fA below %.0fA, failing over to pump %d",
					ps.Active, sens.PumpCurrent[ps.Active-1], PumpFailCurrent, next)
				ps.Changeover = &Changeover{NewPump: next, Start: now}
				ps.FailoverCount++
				ps.LastFailover = now
			} else {
				e.log.Error("pump %d appears failed but no alternate pump is available", ps.Active)
			}
		}
	}

	// weekly rotation
	if ps.Changeover == nil && now.Sub(ps.RotationStart) >= RotationPeriod {
		if next, ok := e.nextAvailablePump(ps.Active); ok && next != ps.Active {
			e.log.Info("pump rotation: %d -> %d", ps.Active, next)
			ps.Changeover = &Changeover{NewPump: next, Start: now}
		}
		ps.RotationStart = now
	}

	// changeover execution: both pumps run inside the overlap window
	if co := ps.Changeover; co != nil {
		if now.Sub(co.Start) < PumpOverlap {
			snap.PumpEnable[ps.Active-1] = true
			snap.PumpEnable[co.NewPump-1] = true
		} else {
			ps.Active = co.NewPump
			ps.Changeover = nil
			snap.PumpEnable[ps.Active-1] = true
		}
	} else {
		snap.PumpEnable[ps.Active-1] = true
	}

	ps.RuntimeHours[ps.Active-1] += e.cfg.TickSeconds / 3600
}

// nextAvailablePump scans forward from the given pump, wrapping, and
// returns the first available candidate.
func (e *Engine) nextAvailablePump(from int) (int, bool) {
	next := from
	for i := 0; i < NumPumps; i++ {
		next = next%NumPumps + 1
		if e.cfg.PumpAvailable[next-1] {
			return next, true
		}
	}
	return 0, false
}
