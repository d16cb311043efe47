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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
	"github.com/xelalexv/hyppolink/pkg/link"
)

//
var ErrDaemonStopped = errors.New("daemon stopped")
var ErrBusy = errors.New("machine busy")
var ErrNotConnected = errors.New("not connected to machine")

// ErrOutput marks failures of the consumer of streamed data. These say
// nothing about the machine link.
var ErrOutput = errors.New("error writing output")

// how long an operation waits for the machine to become available
const lockTimeout = time.Second

const StatusConnected = "connected"
const StatusDisconnected = "disconnected"

// NewDaemon creates a daemon for the machine at the far end of serial
// device port.
func NewDaemon(port string, baud uint) *Daemon {
	return &Daemon{
		port:      port,
		baud:      baud,
		reconnect: make(chan bool, 1),
		stop:      make(chan bool),
	}
}

// NewLocalDaemon creates a daemon for an in-process machine, e.g. a
// simulated one.
func NewLocalDaemon(m hyppo.Machine) *Daemon {
	d := &Daemon{
		reconnect: make(chan bool, 1),
		stop:      make(chan bool),
	}
	d.setMachine(m)
	return d
}

/*
	Daemon owns one machine and serializes all callers of it. Each operation
	takes the machine for its complete protocol sequence, so that e.g. two
	file reads never interleave in the sector buffer.
*/
type Daemon struct {
	port string
	baud uint
	//
	mutex   sync.RWMutex
	hyppo   *hyppo.Hyppo
	conduit *link.Conduit
	//
	reconnect chan bool
	stop      chan bool
	stopOnce  sync.Once
}

// Serve connects to the machine, prepares it, and keeps the connection
// alive until Stop is called.
func (d *Daemon) Serve() error {

	if d.port != "" {
		if err := d.ResetConduit(); err != nil {
			return err
		}
	} else if err := d.prepare(); err != nil {
		log.Errorf("error preparing machine: %v", err)
	}

	for {
		select {
		case <-d.stop:
			d.closeConduit()
			return ErrDaemonStopped

		case <-d.reconnect:
			if d.port == "" {
				continue
			}
			if err := d.ResetConduit(); err != nil {
				return err
			}
		}
	}
}

//
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		log.Info("daemon stopping...")
		close(d.stop)
	})
}

// ResetConduit (re)opens the serial link, retrying with exponential backoff
// until it succeeds or the daemon is stopped.
func (d *Daemon) ResetConduit() error {

	d.closeConduit()

	maxBackoff := 15 * time.Second

	for backoff := time.Second; ; {
		log.Infof("opening port %s", d.port)
		con, err := link.Dial(d.port, d.baud)
		if err == nil {
			d.mutex.Lock()
			d.conduit = con
			d.mutex.Unlock()
			d.setMachine(con)
			if err := d.prepare(); err != nil {
				log.Errorf("error preparing machine: %v", err)
			}
			return nil
		}

		log.Errorf("cannot connect to machine: %v", err)
		if backoff < maxBackoff {
			backoff *= 2
		}

		select {
		case <-d.stop:
			return ErrDaemonStopped
		case <-time.After(backoff):
		}
	}
}

//
func (d *Daemon) closeConduit() {

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.conduit != nil {
		log.Infof("closing port %s", d.port)
		if err := d.conduit.Close(); err != nil {
			log.Errorf("error closing port: %v", err)
		}
		d.conduit = nil
		d.hyppo = nil
	}
}

//
func (d *Daemon) setMachine(m hyppo.Machine) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.hyppo = hyppo.New(m)
}

// GetStatus returns whether the daemon is currently connected to a machine.
func (d *Daemon) GetStatus() string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if d.hyppo == nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// prepare brings the machine into a known state: full speed, SD card
// ready, no open files, root directory of drive 0.
func (d *Daemon) prepare() error {
	return d.run(func(h *hyppo.Hyppo) error {

		if err := h.Card.Fast(); err != nil {
			return err
		}
		if err := h.Card.Open(); err != nil {
			return err
		}
		if err := h.CloseAll(); err != nil {
			return err
		}
		if _, err := h.ChdirRoot(); err != nil {
			log.Warnf("cannot change to root directory: %v", err)
		}

		v, err := h.Version()
		if err != nil {
			return err
		}
		log.WithField("version", v.String()).Info("machine ready")
		return nil
	})
}

/*
	run calls fn with the machine held. If the machine is held by someone
	else for longer than lockTimeout, ErrBusy is returned. Transport errors
	from fn trigger a reconnect.
*/
func (d *Daemon) run(fn func(h *hyppo.Hyppo) error) error {

	d.mutex.RLock()
	h := d.hyppo
	d.mutex.RUnlock()

	if h == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if !h.Buffer.Lock(ctx) {
		return ErrBusy
	}
	defer h.Buffer.Unlock()

	err := fn(h)
	if err != nil && isTransportError(err) {
		log.Errorf("machine link failed: %v", err)
		select {
		case d.reconnect <- true:
		default:
		}
	}
	return err
}

// isTransportError tells apart link failures from hypervisor and protocol
// errors.
func isTransportError(err error) bool {
	if _, ok := hyppo.CodeOf(err); ok {
		return false
	}
	for _, e := range []error{hyppo.ErrBufferMapped, hyppo.ErrInvalidRange,
		hyppo.ErrNameTooLong, hyppo.ErrShortBuffer, hyppo.ErrFileClosed,
		ErrOutput} {
		if errors.Is(err, e) {
			return false
		}
	}
	return true
}

//
func validateSectorData(data []byte) error {
	if len(data) != hyppo.SectorSize {
		return fmt.Errorf("sector data must be %d bytes, got %d",
			hyppo.SectorSize, len(data))
	}
	return nil
}
