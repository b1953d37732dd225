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

package config

import (
	"encoding/json"
	"log"
	"os"

	"coolplant/internal/engine"
	"coolplant/pkg/eventbus"
)

type AnalogConfig struct {
	// HTTP address of the analog HAT bridge.
	HTTPAddr            string `json:"http_addr"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
}

type VibrationConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

type WeatherConfig struct {
	// Endpoint returning current outdoor conditions as JSON.
	URL                 string `json:"url"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
}

type SupervisorConfig struct {
	TickSeconds int `json:"tick_seconds"`
}

type RelayConfig struct {
	// BCM pin numbers for the relay board channels.
	PumpPins       [3]int `json:"pump_pins"`
	HeaterPins     [3]int `json:"heater_pins"`
	ValveOpenPins  [3]int `json:"valve_open_pins"`
	ValveClosePins [3]int `json:"valve_close_pins"`

	// Disabled skips GPIO access entirely (development machines).
	Disabled bool `json:"disabled"`
}

type TelemetryConfig struct {
	Endpoint        string `json:"endpoint"`
	Site            string `json:"site"`
	IntervalSeconds int    `json:"interval_seconds"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

type Config struct {
	Plant      engine.Config    `json:"plant"`
	Analog     AnalogConfig     `json:"analog"`
	Vibration  VibrationConfig  `json:"vibration"`
	Weather    WeatherConfig    `json:"weather"`
	Supervisor SupervisorConfig `json:"supervisor"`
	Relays     RelayConfig      `json:"relays"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Store      StoreConfig      `json:"store"`

	// not loaded from file, but added here to
	// pass to all services alongside config
	EventBus *eventbus.Bus `json:"-"`
	DataDir  string        `json:"-"`
}

func LoadFile(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open config: %v", err)
	}
	defer f.Close()
	var c Config
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		log.Fatalf("decode config: %v", err)
	}
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	def := engine.DefaultConfig()
	if c.Plant.TickSeconds == 0 {
		c.Plant.TickSeconds = def.TickSeconds
	}
	if c.Plant.Channels == (engine.ChannelMap{}) {
		c.Plant.Channels = def.Channels
	}
	if c.Plant.TowerIDs == ([3]string{}) {
		c.Plant.TowerIDs = def.TowerIDs
		c.Plant.TowerAvailable = def.TowerAvailable
	}
	if c.Plant.PumpIDs == ([3]string{}) {
		c.Plant.PumpIDs = def.PumpIDs
		c.Plant.PumpAvailable = def.PumpAvailable
	}
	if c.Analog.PollIntervalSeconds == 0 {
		c.Analog.PollIntervalSeconds = 5
	}
	if c.Vibration.PollIntervalSeconds == 0 {
		c.Vibration.PollIntervalSeconds = 10
	}
	if c.Weather.PollIntervalSeconds == 0 {
		c.Weather.PollIntervalSeconds = 300
	}
	if c.Supervisor.TickSeconds == 0 {
		c.Supervisor.TickSeconds = int(c.Plant.TickSeconds)
	}
	if c.Telemetry.IntervalSeconds == 0 {
		c.Telemetry.IntervalSeconds = 45
	}
	if c.Telemetry.Site == "" {
		c.Telemetry.Site = "plant1"
	}
	if c.Store.Path == "" {
		c.Store.Path = "var/cache/coolplant.db"
	}
}
