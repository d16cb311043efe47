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
	"encoding/binary"
)

// addresses within the MEGA65 28 bit address space
const (
	AddrCPUPort      uint32 = 0x0000
	AddrNameBuffer   uint32 = 0x0200 // page aligned transfer area for names
	AddrTrap         uint32 = 0xD640
	AddrDebugOut     uint32 = 0xD643
	AddrSDControl    uint32 = 0xD680
	AddrSDAddress    uint32 = 0xD681 // 4 bytes, little endian
	AddrSDBufferCtl  uint32 = 0xD689
	AddrBufferWindow uint32 = 0xDE00
	AddrSectorBuffer uint32 = 0xFFD6E00
)

// SectorSize is the size of the sector buffer, and of every transfer
// between buffer and SD card or file.
const SectorSize = 512

// MaxNameLength is the longest name the hypervisor accepts, not counting
// the terminating NUL.
const MaxNameLength = 63

// SD controller commands written to AddrSDControl
const (
	SDCmdReset       byte = 0x00
	SDCmdEndReset    byte = 0x01
	SDCmdRead        byte = 0x02
	SDCmdWrite       byte = 0x03
	SDCmdMultiFirst  byte = 0x04
	SDCmdMultiMiddle byte = 0x05
	SDCmdMultiLast   byte = 0x06
	SDCmdNoSDHC      byte = 0x40
	SDCmdSDHC        byte = 0x41
	SDCmdMapBuffer   byte = 0x81
	SDCmdUnmapBuffer byte = 0x82
)

// SD controller status bits read from AddrSDControl
const (
	SDStatusBusy  byte = 0x03
	SDStatusError byte = 0x40
)

// SDBufferSelectSD in AddrSDBufferCtl selects the SD card buffer rather
// than the floppy buffer as target of the sector buffer.
const SDBufferSelectSD byte = 0x80

// CPUFast written to the CPU port switches to full speed.
const CPUFast byte = 65

/*
	New creates a driver for machine m. All services share one gateway and
	one sector buffer, just like they share the hardware.
*/
func New(m Machine) *Hyppo {
	gw := NewGateway(m)
	buf := newBuffer(gw)
	return &Hyppo{
		gateway: gw,
		Buffer:  buf,
		Card:    newSDCard(gw, buf),
	}
}

// Hyppo gives access to the hypervisor services, the sector buffer, and the
// raw SD card.
type Hyppo struct {
	gateway *Gateway
	//
	Buffer *Buffer
	Card   *SDCard
}

//
func (h *Hyppo) Gateway() *Gateway {
	return h.gateway
}

//
func putSectorAddress(p []byte, n uint32) {
	binary.LittleEndian.PutUint32(p, n)
}
