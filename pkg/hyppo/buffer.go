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
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

//
func newBuffer(gw *Gateway) *Buffer {
	return &Buffer{
		gateway: gw,
		lock:    make(chan bool, 1),
	}
}

/*
	Buffer is the 512 byte sector buffer shared by hypervisor file reads and
	raw SD card transfers. Every sector or file read overwrites it, so a caller
	that needs the contents across several calls must hold the buffer with
	Lock for the whole sequence.
*/
type Buffer struct {
	gateway *Gateway
	mapped  bool
	//
	lock chan bool
}

// Lock takes ownership of the buffer, waiting until ctx is done.
func (b *Buffer) Lock(ctx context.Context) bool {
	select {
	case b.lock <- true:
		log.Trace("sector buffer locked")
		return true
	case <-ctx.Done():
		log.Debug("sector buffer lock timed out")
		return false
	}
}

//
func (b *Buffer) Unlock() {
	select {
	case <-b.lock:
		log.Trace("sector buffer unlocked")
	default:
		log.Debug("sector buffer was already unlocked")
	}
}

//
func (b *Buffer) IsLocked() bool {
	return len(b.lock) > 0
}

// Clear zeroes the buffer.
func (b *Buffer) Clear() error {
	return b.gateway.Sequence(func(s *Session) error {
		return b.clear(s)
	})
}

//
func (b *Buffer) clear(s *Session) error {
	_, err := s.Machine().WriteAt(make([]byte, SectorSize), AddrSectorBuffer)
	return err
}

// Map makes the buffer visible at AddrBufferWindow. Mapping an already
// mapped buffer is refused.
func (b *Buffer) Map() error {
	return b.gateway.Sequence(func(s *Session) error {
		if b.mapped {
			return ErrBufferMapped
		}
		if err := s.Machine().Poke(AddrSDControl, SDCmdMapBuffer); err != nil {
			return err
		}
		b.mapped = true
		log.Debug("sector buffer mapped")
		return nil
	})
}

// Unmap releases the buffer window. Unmapping an unmapped buffer does
// nothing.
func (b *Buffer) Unmap() error {
	return b.gateway.Sequence(func(s *Session) error {
		if !b.mapped {
			return nil
		}
		if err := s.Machine().Poke(AddrSDControl, SDCmdUnmapBuffer); err != nil {
			return err
		}
		b.mapped = false
		log.Debug("sector buffer unmapped")
		return nil
	})
}

//
func (b *Buffer) IsMapped() bool {
	var ret bool
	b.gateway.Sequence(func(*Session) error {
		ret = b.mapped
		return nil
	})
	return ret
}

// Read copies the buffer contents into p, at most SectorSize bytes.
func (b *Buffer) Read(p []byte) (int, error) {
	var n int
	err := b.gateway.Sequence(func(s *Session) error {
		var err error
		n, err = b.read(s, p)
		return err
	})
	return n, err
}

//
func (b *Buffer) read(s *Session, p []byte) (int, error) {
	if len(p) > SectorSize {
		p = p[:SectorSize]
	}
	n, err := s.Machine().ReadAt(p, AddrSectorBuffer)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("error reading sector buffer: %v", err)
	}
	return n, nil
}

// Bytes returns a copy of the full buffer.
func (b *Buffer) Bytes() ([]byte, error) {
	ret := make([]byte, SectorSize)
	if _, err := b.Read(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Write copies p into the buffer, at most SectorSize bytes. If p is shorter,
// the remainder of the buffer is left as it is.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > SectorSize {
		p = p[:SectorSize]
	}
	var n int
	err := b.gateway.Sequence(func(s *Session) error {
		var err error
		if n, err = s.Machine().WriteAt(p, AddrSectorBuffer); err != nil {
			return fmt.Errorf("error writing sector buffer: %v", err)
		}
		return nil
	})
	return n, err
}
