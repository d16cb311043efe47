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

package hyppo

import (
	"fmt"
)

// Version of the hypervisor and of its HDOS file system services. The HDOS
// is not related to the CBDOS in the Kernal, nor to the DOS in drives on
// the serial bus.
type Version struct {
	HyppoMajor byte `json:"hyppoMajor"`
	HyppoMinor byte `json:"hyppoMinor"`
	HDOSMajor  byte `json:"hdosMajor"`
	HDOSMinor  byte `json:"hdosMinor"`
}

// versionFromQuad decodes the Q register as returned by the version trap.
func versionFromQuad(q uint32) Version {
	return Version{
		HyppoMajor: byte(q),
		HyppoMinor: byte(q >> 8),
		HDOSMajor:  byte(q >> 16),
		HDOSMinor:  byte(q >> 24),
	}
}

//
func (v Version) HyppoAtLeast(major, minor byte) bool {
	return atLeast(v.HyppoMajor, v.HyppoMinor, major, minor)
}

//
func (v Version) HDOSAtLeast(major, minor byte) bool {
	return atLeast(v.HDOSMajor, v.HDOSMinor, major, minor)
}

// AtLeast reports whether both hypervisor and HDOS are at least at
// major.minor.
func (v Version) AtLeast(major, minor byte) bool {
	return v.HyppoAtLeast(major, minor) && v.HDOSAtLeast(major, minor)
}

//
func (v Version) String() string {
	return fmt.Sprintf("hyppo %d.%d, hdos %d.%d",
		v.HyppoMajor, v.HyppoMinor, v.HDOSMajor, v.HDOSMinor)
}

//
func atLeast(maj, min, wantMaj, wantMin byte) bool {
	if maj != wantMaj {
		return maj > wantMaj
	}
	return min >= wantMin
}

// Version queries the hypervisor version. Each call is a fresh query.
func (h *Hyppo) Version() (Version, error) {
	out, err := h.gateway.Issue(CmdVersion, Registers{})
	if err != nil {
		return Version{}, err
	}
	return versionFromQuad(out.Quad()), nil
}

// ToggleROMWriteProtect toggles write protection of $20000-$3FFFF, and
// reports whether the area is protected afterwards.
func (h *Hyppo) ToggleROMWriteProtect() (bool, error) {
	out, err := h.gateway.Issue(CmdToggleROMProtect, Registers{})
	if err != nil {
		return false, err
	}
	return out.A&(1<<2) != 0, nil
}

// DebugMsg sends msg followed by CR LF to the debug output, where the host
// side of an emulator or serial monitor picks it up.
func (h *Hyppo) DebugMsg(msg string) error {
	return h.gateway.Sequence(func(s *Session) error {
		for _, c := range append([]byte(msg), '\r', '\n') {
			if err := s.Machine().Poke(AddrDebugOut, c); err != nil {
				return err
			}
		}
		return nil
	})
}
