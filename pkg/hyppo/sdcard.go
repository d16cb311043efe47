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
	log "github.com/sirupsen/logrus"
)

//
func newSDCard(gw *Gateway, buf *Buffer) *SDCard {
	return &SDCard{gateway: gw, buffer: buf, sdhc: true}
}

/*
	SDCard gives raw sector access to the SD card, bypassing any file system.
	Sector transfers go through the sector buffer, which should be mapped.
	Whether it actually is, is not checked.

	Cards are assumed to be SDHC, i.e. block addressed. A controller reset
	drops the addressing mode, so every reset re-asserts it.
*/
type SDCard struct {
	gateway *Gateway
	buffer  *Buffer
	sdhc    bool
}

// SetSDHC selects block addressing (true) or byte addressing for standard
// capacity cards. It takes effect with the next Reset or Open.
func (c *SDCard) SetSDHC(on bool) {
	c.gateway.mutex.Lock()
	defer c.gateway.mutex.Unlock()
	c.sdhc = on
}

// Reset puts the SD card controller into a known state. Call this after
// power up, and to recover from errors.
func (c *SDCard) Reset() error {
	return c.gateway.Sequence(func(s *Session) error {
		return c.reset(s)
	})
}

//
func (c *SDCard) reset(s *Session) error {
	m := s.Machine()
	if err := m.Poke(AddrSDControl, SDCmdReset); err != nil {
		return err
	}
	if err := m.Poke(AddrSDControl, SDCmdEndReset); err != nil {
		return err
	}
	if _, err := waitReady(s); err != nil {
		return err
	}
	mode := SDCmdNoSDHC
	if c.sdhc {
		mode = SDCmdSDHC
	}
	log.WithField("sdhc", c.sdhc).Debug("SD card reset")
	return m.Poke(AddrSDControl, mode)
}

// Fast switches to full speed. There is no way back within a session.
func (c *SDCard) Fast() error {
	return c.gateway.Sequence(func(s *Session) error {
		return s.Machine().Poke(AddrCPUPort, CPUFast)
	})
}

// Open prepares the card for sector access. Currently this is a reset.
func (c *SDCard) Open() error {
	return c.gateway.Sequence(func(s *Session) error {
		return c.reset(s)
	})
}

// ReadSector transfers sector n from the card into the sector buffer. The
// returned status is 0 on success, otherwise the controller status, which
// is then also returned as *Error.
func (c *SDCard) ReadSector(n uint32) (byte, error) {
	var status byte
	err := c.gateway.Sequence(func(s *Session) error {
		var err error
		status, err = c.transfer(s, SDCmdRead, n)
		return err
	})
	log.WithFields(log.Fields{"sector": n, "status": status}).Debug("read sector")
	return status, err
}

// WriteSector transfers the sector buffer to sector n on the card. Status
// as for ReadSector.
func (c *SDCard) WriteSector(n uint32) (byte, error) {
	var status byte
	err := c.gateway.Sequence(func(s *Session) error {
		var err error
		status, err = c.transfer(s, SDCmdWrite, n)
		return err
	})
	log.WithFields(log.Fields{"sector": n, "status": status}).Debug("write sector")
	return status, err
}

/*
	Erase zeroes all sectors from first through last, using multi-sector
	writes. This clears the sector buffer, and holds the gateway until all
	sectors are written. There is no progress reporting. If first is beyond
	last, ErrInvalidRange is returned and nothing is touched.
*/
func (c *SDCard) Erase(first, last uint32) error {

	if first > last {
		return ErrInvalidRange
	}

	log.WithFields(log.Fields{"first": first, "last": last}).Info("erasing sectors")

	return c.gateway.Sequence(func(s *Session) error {

		if err := c.buffer.clear(s); err != nil {
			return err
		}

		for n := first; ; n++ {
			cmd := SDCmdMultiMiddle
			switch {
			case first == last:
				cmd = SDCmdWrite
			case n == first:
				cmd = SDCmdMultiFirst
			case n == last:
				cmd = SDCmdMultiLast
			}
			if _, err := c.transfer(s, cmd, n); err != nil {
				return err
			}
			if n == last { // also guards against wrap around at 0xffffffff
				return nil
			}
		}
	})
}

//
func (c *SDCard) transfer(s *Session, cmd byte, n uint32) (byte, error) {

	if status, err := waitReady(s); err != nil {
		return status, err
	}

	addr := make([]byte, 4)
	if c.sdhc {
		putSectorAddress(addr, n)
	} else {
		putSectorAddress(addr, n*SectorSize)
	}
	m := s.Machine()
	if _, err := m.WriteAt(addr, AddrSDAddress); err != nil {
		return 0, err
	}
	if err := m.Poke(AddrSDControl, cmd); err != nil {
		return 0, err
	}

	status, err := waitReady(s)
	if err != nil {
		return 0, err
	}
	if status&SDStatusError != 0 {
		return status, &Error{Op: "sector transfer", Code: status}
	}
	return 0, nil
}

// waitReady polls the controller until it is no longer busy. There is no
// timeout, a hung controller hangs the caller.
func waitReady(s *Session) (byte, error) {
	for {
		status, err := s.Machine().Peek(AddrSDControl)
		if err != nil {
			return 0, err
		}
		if status&SDStatusBusy == 0 {
			return status, nil
		}
	}
}
