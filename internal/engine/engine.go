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

// Package engine implements the per-tick supervisory control decision
// for the three-tower evaporative cooling plant. Step is a pure
// transform of (sensors, ui, carried state) into a command snapshot;
// it performs no I/O and must not be re-entered concurrently.
package engine

import (
	"fmt"
	"time"

	"coolplant/pkg/logger"
)

// Bypasses disables individual safety domains for commissioning work.
// A set flag means the corresponding checks are skipped.
type Bypasses struct {
	EmergencyStop bool `json:"emergency_stop"`
	WaterLevel    bool `json:"water_level"`
	Vibration     bool `json:"vibration"`
	Current       bool `json:"current"`
	PumpStatus    bool `json:"pump_status"`
	VFDFault      bool `json:"vfd_fault"`
}

// Config is the boot-time plant description. Thresholds and timings
// are compile-time constants; this holds what differs per site.
type Config struct {
	TowerIDs [NumTowers]string `json:"tower_ids"`
	PumpIDs  [NumPumps]string  `json:"pump_ids"`

	TowerAvailable [NumTowers]bool `json:"tower_available"`
	PumpAvailable  [NumPumps]bool  `json:"pump_available"`

	Bypass Bypasses `json:"bypasses"`

	// Caller tick period in seconds, used for pump runtime accounting.
	TickSeconds float64 `json:"tick_seconds"`

	Channels ChannelMap `json:"channels"`
}

func DefaultConfig() Config {
	return Config{
		TowerIDs:       [NumTowers]string{"CT-1", "CT-2", "CT-3"},
		PumpIDs:        [NumPumps]string{"CWP-1", "CWP-2", "CWP-3"},
		TowerAvailable: [NumTowers]bool{true, true, true},
		PumpAvailable:  [NumPumps]bool{true, true, true},
		TickSeconds:    7,
		Channels:       DefaultChannelMap(),
	}
}

type Engine struct {
	cfg Config
	log *logger.Logger

	// decimates per-tick debug output to every nth cycle
	tickCount uint64
}

func New(cfg Config) *Engine {
	if cfg.TickSeconds <= 0 {
		cfg.TickSeconds = 7
	}
	if cfg.Channels == (ChannelMap{}) {
		cfg.Channels = DefaultChannelMap()
	}
	return &Engine{
		cfg: cfg,
		log: logger.New("Engine"),
	}
}

func (e *Engine) Config() Config { return e.cfg }

// Step runs one control cycle. It mutates st in place; on an internal
// panic the state is restored and a fully-safe snapshot returned so
// the next cycle can resume from known conditions.
func (e *Engine) Step(now time.Time, raw map[string]string, ui UICommands, st *State) (snap Snapshot) {
	st.Init(now)
	backup := st.clone()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("control cycle panic: %v", r)
			*st = backup
			snap = e.errorSnapshot(now)
		}
	}()

	e.tickCount++
	sens := sanitize(raw, e.cfg.Channels, st)

	snap = Snapshot{
		Time:          now,
		AlarmStatus:   AlarmNormal,
		SystemEnabled: true,
		ControlMode:   "auto",
		LeadTower:     st.LeadTower,
		Sensors:       sens,
	}
	snap.SafetyBypasses = e.bypassList()

	if faults := e.criticalFaults(sens); len(faults) > 0 {
		// timers are left untouched so off-cooldown accounting still
		// applies once the fault clears
		return e.safeShutdown(now, sens, st, faults)
	}

	e.rotateLead(now, st)
	snap.LeadTower = st.LeadTower

	stg := e.stage(sens, st)
	snap.CoolingDemand = stg.DemandPct
	snap.LoopDeltaT = stg.DeltaT
	snap.TargetSupplyTemp = sens.Setpoint

	e.commandPumps(now, sens, st, &snap)
	e.commandTowers(now, sens, stg, st, &snap)
	e.enforceRuntime(now, sens, stg, st, &snap)
	e.commandValves(now, sens, ui, st, &snap)
	e.commandHeaters(sens, st, &snap)
	e.monitor(sens, &snap)
	e.applyOverrides(ui, &snap)

	if e.tickCount%100 == 0 {
		e.log.Debug("tick: dT=%.1f°F demand=%.0f%% towers=%d lead=%d alarm=%s",
			stg.DeltaT, stg.DemandPct, snap.ActiveTowers, st.LeadTower, snap.AlarmStatus)
	}
	return snap
}

// criticalFaults evaluates the hard-shutdown conditions, each under
// its bypass flag.
func (e *Engine) criticalFaults(sens Sensors) []string {
	var faults []string

	if !e.cfg.Bypass.Vibration {
		for i := 0; i < NumTowers; i++ {
			if sens.Vibration[i] > VibCrit {
				faults = append(faults, fmt.Sprintf("TOWER%d_HIGH_VIBRATION_CRITICAL", i+1))
			}
		}
	}
	if !e.cfg.Bypass.Current {
		for i := 0; i < NumTowers; i++ {
			if sens.VFDCurrent[i][0] > VfdCritCurrent || sens.VFDCurrent[i][1] > VfdCritCurrent {
				faults = append(faults, fmt.Sprintf("TOWER%d_CRITICAL_VFD_CURRENT", i+1))
			}
		}
		for i := 0; i < NumPumps; i++ {
			if sens.PumpCurrent[i] > PumpMaxCurrent {
				faults = append(faults, fmt.Sprintf("PUMP%d_OVERCURRENT", i+1))
			}
		}
	}
	return faults
}

// safeShutdown is the critical-fault output: everything off, all
// isolation valves driven closed, valves at minimum. Heaters hold
// their last safe state.
func (e *Engine) safeShutdown(now time.Time, sens Sensors, st *State, faults []string) Snapshot {
	snap := Snapshot{
		Time:                   now,
		AlarmStatus:            AlarmCritical,
		FaultConditions:        faults,
		SafetyBypasses:         e.bypassList(),
		SystemEnabled:          true,
		ControlMode:            "auto",
		LeadTower:              st.LeadTower,
		BypassValvePosition:    ValveMin,
		TemperingValvePosition: ValveMin,
		TargetSupplyTemp:       sens.Setpoint,
		Sensors:                sens,
	}
	for i := range snap.Towers {
		snap.Towers[i] = TowerCommand{
			IsolationValve: ValveClose,
			HeaterEnable:   st.HeatersOn,
		}
	}
	e.log.Error("safe shutdown: %v", faults)
	return snap
}

// errorSnapshot is the outermost-handler output for an unhandled
// failure inside the engine itself.
func (e *Engine) errorSnapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Time:                   now,
		AlarmStatus:            AlarmError,
		FaultConditions:        []string{"CONTROL_SYSTEM_ERROR"},
		SafetyBypasses:         e.bypassList(),
		ControlMode:            "error",
		BypassValvePosition:    ValveMin,
		TemperingValvePosition: ValveMin,
	}
	for i := range snap.Towers {
		snap.Towers[i] = TowerCommand{IsolationValve: ValveClose}
	}
	return snap
}

func (e *Engine) bypassList() []string {
	var out []string
	b := e.cfg.Bypass
	for _, f := range []struct {
		set  bool
		name string
	}{
		{b.EmergencyStop, "EMERGENCY_STOP"},
		{b.WaterLevel, "WATER_LEVEL"},
		{b.Vibration, "VIBRATION"},
		{b.Current, "CURRENT"},
		{b.PumpStatus, "PUMP_STATUS"},
		{b.VFDFault, "VFD_FAULT"},
	} {
		if f.set {
			out = append(out, f.name)
		}
	}
	return out
}
