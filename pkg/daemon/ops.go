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

package daemon

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
func (d *Daemon) Version() (hyppo.Version, error) {
	var ret hyppo.Version
	err := d.run(func(h *hyppo.Hyppo) error {
		var err error
		ret, err = h.Version()
		return err
	})
	return ret, err
}

//
func (d *Daemon) ToggleROMWriteProtect() (bool, error) {
	var ret bool
	err := d.run(func(h *hyppo.Hyppo) error {
		var err error
		ret, err = h.ToggleROMWriteProtect()
		return err
	})
	return ret, err
}

// GetDrive returns current and default drive.
func (d *Daemon) GetDrive() (byte, byte, error) {
	var current, def byte
	err := d.run(func(h *hyppo.Hyppo) error {
		var err error
		if current, err = h.CurrentDrive(); err != nil {
			return err
		}
		def, err = h.DefaultDrive()
		return err
	})
	return current, def, err
}

//
func (d *Daemon) SelectDrive(n byte) (byte, error) {
	var code byte
	err := d.run(func(h *hyppo.Hyppo) error {
		var err error
		code, err = h.SelectDrive(n)
		return err
	})
	return code, err
}

// Chdir changes the working directory by one segment, or to the root of
// drive 0 if root is set.
func (d *Daemon) Chdir(segment string, root bool) (byte, error) {
	var code byte
	err := d.run(func(h *hyppo.Hyppo) error {
		var err error
		if root {
			code, err = h.ChdirRoot()
		} else {
			code, err = h.Chdir(segment)
		}
		return err
	})
	return code, err
}

/*
	ReadFile streams file name from the current directory to w, in chunks of
	512 bytes. Open descriptors are closed first, and the file is closed when
	done.
*/
func (d *Daemon) ReadFile(name string, w io.Writer) (int64, error) {

	var total int64

	err := d.run(func(h *hyppo.Hyppo) error {

		if err := h.CloseAll(); err != nil {
			return err
		}

		fd, err := h.Open(name)
		if err != nil {
			if code, e := h.LastError(); e == nil {
				log.WithFields(log.Fields{
					"file": name, "code": fmt.Sprintf("$%02X", code),
				}).Warn("cannot open file")
			}
			return err
		}
		defer h.Close(fd)

		buf := make([]byte, hyppo.SectorSize)
		for {
			n, err := h.Read512(buf)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: %v", ErrOutput, err)
			}
			total += int64(n)
		}
	})

	log.WithFields(log.Fields{"file": name, "bytes": total}).Debug("file read")
	return total, err
}

// ReadSector reads raw sector n from the SD card.
func (d *Daemon) ReadSector(n uint32) ([]byte, error) {

	var ret []byte

	err := d.run(func(h *hyppo.Hyppo) error {
		return withMappedBuffer(h, func() error {
			if _, err := h.Card.ReadSector(n); err != nil {
				return err
			}
			var err error
			ret, err = h.Buffer.Bytes()
			return err
		})
	})

	return ret, err
}

// WriteSector writes data, which must be exactly one sector long, to raw
// sector n on the SD card.
func (d *Daemon) WriteSector(n uint32, data []byte) error {

	if err := validateSectorData(data); err != nil {
		return err
	}

	return d.run(func(h *hyppo.Hyppo) error {
		return withMappedBuffer(h, func() error {
			if _, err := h.Buffer.Write(data); err != nil {
				return err
			}
			_, err := h.Card.WriteSector(n)
			return err
		})
	})
}

// Erase zeroes sectors first through last.
func (d *Daemon) Erase(first, last uint32) error {
	if first > last {
		return hyppo.ErrInvalidRange
	}
	return d.run(func(h *hyppo.Hyppo) error {
		return withMappedBuffer(h, func() error {
			return h.Card.Erase(first, last)
		})
	})
}

// ResetCard resets the SD card controller and reopens the card.
func (d *Daemon) ResetCard() error {
	return d.run(func(h *hyppo.Hyppo) error {
		return h.Card.Open()
	})
}

// DebugMsg sends msg to the machine's debug output.
func (d *Daemon) DebugMsg(msg string) error {
	return d.run(func(h *hyppo.Hyppo) error {
		return h.DebugMsg(msg)
	})
}

// withMappedBuffer runs fn with the sector buffer mapped, and unmaps it
// afterwards.
func withMappedBuffer(h *hyppo.Hyppo, fn func() error) error {
	if err := h.Buffer.Map(); err != nil && err != hyppo.ErrBufferMapped {
		return err
	}
	defer func() {
		if err := h.Buffer.Unmap(); err != nil {
			log.Errorf("error unmapping sector buffer: %v", err)
		}
	}()
	return fn()
}
