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

package sim

import (
	"encoding/binary"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
func newController(img Image) *controller {
	return &controller{
		image:  img,
		buffer: make([]byte, hyppo.SectorSize),
	}
}

// controller is the SD card controller with its sector buffer. Transfers
// complete immediately, so the busy bits are never seen set. A reset falls
// back to byte addressing.
type controller struct {
	image Image
	//
	buffer    []byte
	address   [4]byte
	status    byte
	bufferCtl byte
	mapped    bool
	sdhc      bool
}

//
func (c *controller) command(cmd byte) {

	switch cmd {

	case hyppo.SDCmdReset:
		c.status = 0
		c.sdhc = false

	case hyppo.SDCmdEndReset:
		c.status = 0

	case hyppo.SDCmdRead:
		c.transfer(false)

	case hyppo.SDCmdWrite, hyppo.SDCmdMultiFirst, hyppo.SDCmdMultiMiddle,
		hyppo.SDCmdMultiLast:
		c.transfer(true)

	case hyppo.SDCmdSDHC:
		c.sdhc = true

	case hyppo.SDCmdNoSDHC:
		c.sdhc = false

	case hyppo.SDCmdMapBuffer:
		c.mapped = true

	case hyppo.SDCmdUnmapBuffer:
		c.mapped = false

	default:
		log.Warnf("unsupported SD controller command $%02X", cmd)
	}
}

// sector returns the addressed sector. Without SDHC, cards are byte
// addressed.
func (c *controller) sector() uint32 {
	addr := binary.LittleEndian.Uint32(c.address[:])
	if c.sdhc {
		return addr
	}
	return addr / hyppo.SectorSize
}

//
func (c *controller) transfer(write bool) {

	c.status = 0
	n := c.sector()

	if c.image == nil || n >= c.image.Sectors() {
		log.WithField("sector", n).Warn("SD card access out of range")
		c.status = hyppo.SDStatusError
		return
	}

	off := int64(n) * hyppo.SectorSize
	var err error
	if write {
		_, err = c.image.WriteAt(c.buffer, off)
	} else {
		_, err = c.image.ReadAt(c.buffer, off)
	}

	if err != nil {
		log.WithField("sector", n).Errorf("SD card image error: %v", err)
		c.status = hyppo.SDStatusError
	}
}
