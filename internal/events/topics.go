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

package events

import (
	"time"

	"coolplant/internal/engine"
	"coolplant/pkg/eventbus"
)

var (
	// TopicSensors carries raw channel readings from the acquisition
	// services, one source per event; the supervisor merges them.
	TopicSensors eventbus.Topic = "sensors"

	// TopicOverrides carries operator override sets from the UI.
	TopicOverrides eventbus.Topic = "overrides"

	// TopicCommands carries the output snapshot of each control cycle.
	TopicCommands eventbus.Topic = "commands"

	// TopicWeather carries outdoor condition updates.
	TopicWeather eventbus.Topic = "weather"
)

// SensorUpdate is a partial raw snapshot: one acquisition source's
// channels, merged by the supervisor into the full map.
type SensorUpdate struct {
	Source   string
	Channels map[string]string
	Time     time.Time
}

// OverrideUpdate replaces the standing operator override set.
type OverrideUpdate struct {
	Commands engine.UICommands
	Time     time.Time
}

// CommandUpdate is published after every control cycle.
type CommandUpdate struct {
	Snapshot engine.Snapshot
}

// WeatherUpdate reports outdoor air conditions in °F.
type WeatherUpdate struct {
	TemperatureF float64
	Time         time.Time
}
