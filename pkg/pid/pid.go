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

// Package pid implements a stateless-by-convention PID step: the caller owns
// the controller state and threads it through every call, so the same code
// serves any number of loops without shared mutable state.
package pid

import (
	"errors"
	"math"
)

type Params struct {
	Kp, Ki, Kd float64

	// Output clamp range.
	Min, Max float64

	// ReverseActing inverts the error sign (output rises as input rises).
	ReverseActing bool

	// MaxIntegral caps |integral|. Zero means no cap.
	MaxIntegral float64
}

// State is the carried controller state. The zero value is a valid
// fresh controller.
type State struct {
	Integral   float64 `json:"integral"`
	PrevError  float64 `json:"previous_error"`
	LastOutput float64 `json:"last_output"`
}

// Result is one controller step. Output is clamped to [Params.Min, Params.Max]
// and mirrored into State.LastOutput.
type Result struct {
	Output  float64
	P, I, D float64
	Err     float64
	State   State
}

var (
	ErrBadInterval = errors.New("pid: dt must be positive")
	ErrNotFinite   = errors.New("pid: non-finite input")
)

// Compute advances the controller by one interval of dt seconds.
// It never mutates st; the advanced state is returned in Result.State.
func Compute(input, setpoint float64, p Params, dt float64, st State) (Result, error) {
	if dt <= 0 {
		return Result{}, ErrBadInterval
	}
	if !finite(input) || !finite(setpoint) || !finite(dt) {
		return Result{}, ErrNotFinite
	}

	err := setpoint - input
	if p.ReverseActing {
		err = -err
	}

	integral := st.Integral + err*dt
	if p.MaxIntegral > 0 {
		if integral > p.MaxIntegral {
			integral = p.MaxIntegral
		} else if integral < -p.MaxIntegral {
			integral = -p.MaxIntegral
		}
	}

	pTerm := p.Kp * err
	iTerm := p.Ki * integral
	dTerm := p.Kd * (err - st.PrevError) / dt

	output := pTerm + iTerm + dTerm
	clamped := false
	if output > p.Max {
		output = p.Max
		clamped = true
	} else if output < p.Min {
		output = p.Min
		clamped = true
	}

	// anti-windup: when saturated, do not let the integral keep growing
	if clamped {
		integral = st.Integral
	}

	return Result{
		Output: output,
		P:      pTerm,
		I:      iTerm,
		D:      dTerm,
		Err:    err,
		State: State{
			Integral:   integral,
			PrevError:  err,
			LastOutput: output,
		},
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
