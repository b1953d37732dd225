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

// Package telemetry publishes the latest command snapshot to the
// time-series endpoint as line protocol. It pulls: the control loop
// never waits on the network.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"coolplant/internal/config"
	"coolplant/internal/engine"
	"coolplant/pkg/logger"
)

// SnapshotSource is anything that can hand over the latest output
// snapshot. The supervisor implements it.
type SnapshotSource interface {
	Latest() (engine.Snapshot, bool)
}

type Reporter struct {
	endpoint string
	site     string
	interval time.Duration
	log      *logger.Logger
	source   SnapshotSource
}

func New(source SnapshotSource, appConfig *config.Config) *Reporter {
	return &Reporter{
		endpoint: appConfig.Telemetry.Endpoint,
		site:     appConfig.Telemetry.Site,
		interval: time.Duration(appConfig.Telemetry.IntervalSeconds) * time.Second,
		log:      logger.New("Telemetry"),
		source:   source,
	}
}

func (r *Reporter) Run(ctx context.Context) {
	r.log.Info("Running...")
	defer r.log.Info("Stopped")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reporter) tick(ctx context.Context) {
	snap, ok := r.source.Latest()
	if !ok {
		return
	}
	body := Render(r.site, snap)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(body))
	if err != nil {
		r.log.Error("build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		r.log.Error("push: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		r.log.Error("push: HTTP %d", resp.StatusCode)
	}
}

// Render produces one line-protocol record per tower plus a plant
// line, all sharing the snapshot's timestamp.
func Render(site string, snap engine.Snapshot) string {
	var b strings.Builder
	ts := snap.Time.UnixNano()

	for i, tw := range snap.Towers {
		fmt.Fprintf(&b,
			"metrics,site=%s,tower=%d fan_speed=%s,vfd_enable=%d,valve_open=%d,heater=%d,"+
				"current_a=%s,current_b=%s,vibration=%s,vibration_zone=\"%s\" %d\n",
			site, i+1,
			num(tw.FanSpeed), boolInt(tw.VFDEnable), boolInt(tw.IsolationValve.OpenCmd()), boolInt(tw.HeaterEnable),
			num(snap.Sensors.VFDCurrent[i][0]), num(snap.Sensors.VFDCurrent[i][1]),
			num(snap.Sensors.Vibration[i]), vibrationZone(snap.Sensors.Vibration[i]),
			ts)
	}

	pumps := 0
	for _, on := range snap.PumpEnable {
		if on {
			pumps++
		}
	}
	fmt.Fprintf(&b,
		"metrics,site=%s hp_supply=%s,hp_return=%s,tower_supply=%s,tower_return=%s,outdoor=%s,"+
			"setpoint=%s,delta_t=%s,demand=%s,active_towers=%d,pumps_on=%d,lead_tower=%d,"+
			"tempering=%s,bypass=%s,alarm=\"%s\" %d\n",
		site,
		num(snap.Sensors.HPSupply), num(snap.Sensors.HPReturn),
		num(snap.Sensors.TowerSupply), num(snap.Sensors.TowerReturn),
		num(snap.Sensors.Outdoor), num(snap.Sensors.Setpoint),
		num(snap.LoopDeltaT), num(snap.CoolingDemand),
		snap.ActiveTowers, pumps, snap.LeadTower,
		num(snap.TemperingValvePosition), num(snap.BypassValvePosition),
		snap.AlarmStatus, ts)

	return b.String()
}

// vibrationZone maps an RMS velocity onto the ISO 10816 severity band.
func vibrationZone(v float64) string {
	switch {
	case v > engine.VibCrit:
		return "D"
	case v >= engine.VibWarn:
		return "C"
	case v >= 2.8:
		return "B"
	default:
		return "A"
	}
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
