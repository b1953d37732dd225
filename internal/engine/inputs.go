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
	"fmt"
	"strconv"
)

// ChannelMap names the raw snapshot keys carrying the four loop
// temperatures. The mapping is a commissioning concern: it differs
// between plant wiring revisions, so it lives in config rather than
// code. Defaults match the legacy wiring.
type ChannelMap struct {
	TowerSupply string `yaml:"tower_supply" json:"tower_supply"`
	TowerReturn string `yaml:"tower_return" json:"tower_return"`
	HPReturn    string `yaml:"hp_return" json:"hp_return"`
	HPSupply    string `yaml:"hp_supply" json:"hp_supply"`
}

func DefaultChannelMap() ChannelMap {
	return ChannelMap{
		TowerSupply: "CH1",
		TowerReturn: "CH2",
		HPReturn:    "CH9",
		HPSupply:    "CH10",
	}
}

// Sensors is the sanitized snapshot the decision components consume.
// All temperatures °F, currents A, vibrations mm/s RMS.
type Sensors struct {
	TowerSupply float64 `json:"towerSupplyTemp"`
	TowerReturn float64 `json:"towerReturnTemp"`
	HPReturn    float64 `json:"hpReturnTemp"`
	HPSupply    float64 `json:"hpSupplyTemp"`
	Outdoor     float64 `json:"outdoorTemp"`
	Setpoint    float64 `json:"userSetpoint"`

	// Two VFD leg currents per tower (AI1..AI6).
	VFDCurrent [NumTowers][2]float64 `json:"vfdCurrents"`

	// CH8, CH5, CH6 in pump order.
	PumpCurrent [NumPumps]float64 `json:"pumpCurrents"`

	// WTV801_1..3.
	Vibration [NumTowers]float64 `json:"vibration"`
}

// Temperature acceptance windows. Loop readings outside the window are
// replaced by the last accepted value; outdoor falls back to a mild
// default because no last-good is tracked for it.
const (
	loopTempMinF    = 40.0
	loopTempMaxF    = 120.0
	outdoorTempMinF = -20.0
	outdoorTempMaxF = 120.0

	defaultOutdoorF  = 70.0
	defaultSetpointF = 75.0
)

// sanitize validates the raw channel map into engineering values and
// refreshes st.LastGood with every accepted loop temperature.
func sanitize(raw map[string]string, cm ChannelMap, st *State) Sensors {
	var s Sensors

	s.TowerSupply = loopTemp(raw, cm.TowerSupply, &st.LastGood.TowerSupply)
	s.TowerReturn = loopTemp(raw, cm.TowerReturn, &st.LastGood.TowerReturn)
	s.HPReturn = loopTemp(raw, cm.HPReturn, &st.LastGood.HPReturn)
	s.HPSupply = loopTemp(raw, cm.HPSupply, &st.LastGood.HPSupply)

	s.Outdoor = defaultOutdoorF
	if v, ok := number(raw, "outdoorTemp"); ok && v >= outdoorTempMinF && v <= outdoorTempMaxF {
		s.Outdoor = v
	}

	s.Setpoint = defaultSetpointF
	if v, ok := number(raw, "userSetpoint"); ok {
		s.Setpoint = v
	}

	// currents and vibrations arrive in engineering units already
	for i := 0; i < NumTowers; i++ {
		s.VFDCurrent[i][0], _ = number(raw, fmt.Sprintf("AI%d", i*2+1))
		s.VFDCurrent[i][1], _ = number(raw, fmt.Sprintf("AI%d", i*2+2))
		s.Vibration[i], _ = number(raw, fmt.Sprintf("WTV801_%d", i+1))
	}
	s.PumpCurrent[0], _ = number(raw, "CH8")
	s.PumpCurrent[1], _ = number(raw, "CH5")
	s.PumpCurrent[2], _ = number(raw, "CH6")

	return s
}

// loopTemp accepts a reading in [40, 120] °F, updating lastGood, and
// substitutes lastGood otherwise.
func loopTemp(raw map[string]string, key string, lastGood *float64) float64 {
	v, ok := number(raw, key)
	if !ok || !(v >= loopTempMinF && v <= loopTempMaxF) {
		return *lastGood
	}
	*lastGood = v
	return v
}

func number(raw map[string]string, key string) (float64, bool) {
	str, ok := raw[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TowerOverride carries the optional operator commands for one tower.
// Nil fields leave the automatic decision in place.
type TowerOverride struct {
	VFDEnable    *bool    `json:"vfdEnable,omitempty"`
	FanSpeed     *float64 `json:"fanSpeed,omitempty"`
	HeaterEnable *bool    `json:"heaterEnable,omitempty"`
}

// UICommands is the operator override set applied after the automatic
// pass. All fields are optional.
type UICommands struct {
	SystemEnabled *bool   `json:"systemEnabled,omitempty"`
	ControlMode   *string `json:"controlMode,omitempty"`

	Towers [NumTowers]TowerOverride `json:"towers"`

	BypassValvePosition    *float64 `json:"bypassValvePosition,omitempty"`
	TemperingValvePosition *float64 `json:"temperingValvePosition,omitempty"`
}
