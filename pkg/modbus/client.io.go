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

package modbus

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ReadFloat reads a named register and returns its value in
// engineering units, applying the configured scale and offset (the
// offset only when a non-zero scale is set). The
// vibration transmitters expose scaled uint16 registers; float32 and
// int16 are supported for other device families on the same bus.
func (c *Client) ReadFloat(name string) (float64, error) {
	regDef, ok := c.config.Registers[name]
	if !ok {
		return 0, fmt.Errorf("register %q not configured", name)
	}

	nregisters := registerCount(regDef.DataType)
	raw, err := c.ReadRegisters(c.ctx, regDef.Address, nregisters)
	if err != nil {
		return 0, fmt.Errorf("register read failed for %s: %w", name, err)
	}
	if len(raw) < int(nregisters*2) {
		return 0, fmt.Errorf("register %q returned insufficient data", name)
	}

	var val float64
	switch regDef.DataType {
	case "float32":
		val = float64(bytesToFloat32(raw))
	case "int16":
		val = float64(int16(binary.BigEndian.Uint16(raw)))
	case "uint16":
		val = float64(binary.BigEndian.Uint16(raw))
	default:
		return 0, fmt.Errorf("unsupported data type %q for register %q", regDef.DataType, name)
	}

	if regDef.Scale != 0 {
		val = val*regDef.Scale + regDef.Offset
	}
	return val, nil
}

func registerCount(dataType string) uint16 {
	if dataType == "float32" {
		return 2
	}
	return 1
}

func bytesToFloat32(data []byte) float32 {
	bits := binary.BigEndian.Uint32(data[:4])
	return math.Float32frombits(bits)
}
