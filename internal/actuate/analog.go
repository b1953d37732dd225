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

package actuate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/engine"
	"coolplant/pkg/logger"
)

type voltageOutRequest struct {
	Name    string  `json:"name"`
	Voltage float64 `json:"voltage"`
	Enable  bool    `json:"enable"`
	Channel int     `json:"channel"`
}

// AnalogOutputs writes the modulating outputs (fan VFD speed
// references, tempering and bypass valve positions) through the
// analog HAT bridge.
type AnalogOutputs struct {
	addr string
	log  *logger.Logger
}

func NewAnalogOutputs(conf config.AnalogConfig) *AnalogOutputs {
	return &AnalogOutputs{
		addr: conf.HTTPAddr,
		log:  logger.New("AnalogOut"),
	}
}

func (a *AnalogOutputs) Apply(snap engine.Snapshot) error {
	for i, tw := range snap.Towers {
		if err := a.post(voltageOutRequest{
			Name:    fmt.Sprintf("tower%d_fan", i+1),
			Voltage: tw.FanSpeed,
			Enable:  tw.VFDEnable,
			Channel: i,
		}); err != nil {
			return err
		}
	}
	if err := a.post(voltageOutRequest{
		Name: "tempering_valve", Voltage: snap.TemperingValvePosition, Enable: true, Channel: 3,
	}); err != nil {
		return err
	}
	return a.post(voltageOutRequest{
		Name: "bypass_valve", Voltage: snap.BypassValvePosition, Enable: true, Channel: 4,
	})
}

func (a *AnalogOutputs) post(payload voltageOutRequest) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	url := fmt.Sprintf("http://%s/voltage_out", a.addr)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d writing %s", resp.StatusCode, payload.Name)
	}
	return nil
}
