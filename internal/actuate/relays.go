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

// Package actuate turns command snapshots into hardware writes: relay
// channels over GPIO for the discrete outputs, and the analog HAT
// bridge for the modulating ones.
package actuate

import (
	"sync"

	"github.com/stianeikeland/go-rpio"

	"coolplant/internal/config"
	"coolplant/internal/engine"
	"coolplant/pkg/logger"
)

// Relays drives the discrete outputs: pump contactors, freeze heaters,
// and the isolation-valve open/close pairs.
type Relays struct {
	conf config.RelayConfig
	log  *logger.Logger

	mu     sync.Mutex
	opened bool
}

func NewRelays(conf config.RelayConfig) (*Relays, error) {
	r := &Relays{
		conf: conf,
		log:  logger.New("Relays"),
	}
	if conf.Disabled {
		r.log.Info("relay board disabled, writes will be logged only")
		return r, nil
	}
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	r.opened = true
	for _, pins := range [][3]int{conf.PumpPins, conf.HeaterPins, conf.ValveOpenPins, conf.ValveClosePins} {
		for _, p := range pins {
			pin := rpio.Pin(p)
			pin.Mode(rpio.Output)
			pin.Low()
		}
	}
	return r, nil
}

func (r *Relays) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		rpio.Close()
		r.opened = false
	}
}

func (r *Relays) Apply(snap engine.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < engine.NumPumps; i++ {
		r.set(r.conf.PumpPins[i], snap.PumpEnable[i])
	}
	for i, tw := range snap.Towers {
		r.set(r.conf.HeaterPins[i], tw.HeaterEnable)
		r.set(r.conf.ValveOpenPins[i], tw.IsolationValve.OpenCmd())
		r.set(r.conf.ValveClosePins[i], tw.IsolationValve.CloseCmd())
	}
	return nil
}

func (r *Relays) set(pin int, on bool) {
	if !r.opened {
		r.log.Debug("relay pin %d <- %v", pin, on)
		return
	}
	p := rpio.Pin(pin)
	if on {
		p.High()
	} else {
		p.Low()
	}
}
