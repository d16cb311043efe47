/*
   HyppoLink - MEGA65 hypervisor trap & SD card access
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of HyppoLink.

   HyppoLink is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   HyppoLink is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with HyppoLink. If not, see <http://www.gnu.org/licenses/>.
*/

package control

import (
	"fmt"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
type Status struct {
	Status  string         `json:"status"`
	Version *hyppo.Version `json:"version,omitempty"`
}

//
func (s *Status) String() string {
	if s.Version == nil {
		return fmt.Sprintf("\nmachine: %s\n", s.Status)
	}
	return fmt.Sprintf("\nmachine: %s, %s\n", s.Status, s.Version)
}

//
type Drive struct {
	Current byte `json:"current"`
	Default byte `json:"default"`
}

//
func (d *Drive) String() string {
	return fmt.Sprintf("current drive: %d, default drive: %d",
		d.Current, d.Default)
}

// Result carries the code a hypervisor call returned.
type Result struct {
	Code    byte   `json:"code"`
	Message string `json:"message,omitempty"`
}

//
func (r *Result) String() string {
	if r.Message == "" {
		return fmt.Sprintf("code $%02X", r.Code)
	}
	return fmt.Sprintf("%s (code $%02X)", r.Message, r.Code)
}

//
type ROM struct {
	WriteProtected bool `json:"writeProtected"`
}
