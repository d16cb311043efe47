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

package link

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

// DefaultBaudRate of the serial link
const DefaultBaudRate = 1000000

// OpenPort opens serial device p, 8N1.
func OpenPort(p string, baud uint) (io.ReadWriteCloser, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return serial.Open(serial.OpenOptions{
		PortName:        p,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

// Dial opens serial device p and syncs with the machine at the other end.
func Dial(p string, baud uint) (*Conduit, error) {
	port, err := OpenPort(p, baud)
	if err != nil {
		return nil, err
	}
	c := NewConduit(port)
	if err := c.Sync(); err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// NewConduit creates a conduit over port. Call Sync before use.
func NewConduit(port io.ReadWriteCloser) *Conduit {
	return &Conduit{port: port}
}

/*
	Conduit is a hyppo.Machine at the far end of a byte stream, usually a
	serial line. Each call is one request frame followed by one reply frame.
*/
type Conduit struct {
	port  io.ReadWriteCloser
	mutex sync.Mutex
}

//
func (c *Conduit) Close() error {
	return c.port.Close()
}

// Sync exchanges hellos with the other side.
func (c *Conduit) Sync() error {

	log.Info("syncing with machine")

	reply, err := c.call(newFrame(FrameHello, helloDaemon), FrameHello)
	if err != nil {
		return fmt.Errorf("error syncing with machine: %v", err)
	}
	if !bytes.Equal(reply.payload, helloMachine) {
		return fmt.Errorf("unexpected hello from machine: %q", reply.payload)
	}

	log.Info("synced with machine")
	return nil
}

//
func (c *Conduit) Trap(cmd hyppo.Command, in hyppo.Registers) (hyppo.Registers, error) {

	reply, err := c.call(
		newFrame(FrameTrap, append([]byte{byte(cmd)}, encodeRegisters(in)...)),
		FrameTrap)
	if err != nil {
		return hyppo.Registers{}, err
	}

	return decodeRegisters(reply.payload)
}

//
func (c *Conduit) Peek(addr uint32) (byte, error) {
	b := make([]byte, 1)
	if _, err := c.ReadAt(b, addr); err != nil {
		return 0, err
	}
	return b[0], nil
}

//
func (c *Conduit) Poke(addr uint32, v byte) error {
	_, err := c.WriteAt([]byte{v}, addr)
	return err
}

//
func (c *Conduit) ReadAt(p []byte, addr uint32) (int, error) {

	for done := 0; done < len(p); {

		l := len(p) - done
		if l > maxPayload {
			l = maxPayload
		}

		req := encodeAddress(addr+uint32(done), 2)
		req = append(req, byte(l), byte(l>>8))

		reply, err := c.call(newFrame(FrameRead, req), FrameRead)
		if err != nil {
			return done, err
		}
		if len(reply.payload) != l {
			return done, fmt.Errorf(
				"short read reply, want %d, got %d", l, len(reply.payload))
		}

		done += copy(p[done:], reply.payload)
	}

	return len(p), nil
}

//
func (c *Conduit) WriteAt(p []byte, addr uint32) (int, error) {

	for done := 0; done < len(p); {

		l := len(p) - done
		if l > maxPayload-4 {
			l = maxPayload - 4
		}

		req := encodeAddress(addr+uint32(done), l)
		req = append(req, p[done:done+l]...)

		if _, err := c.call(newFrame(FrameWrite, req), FrameWrite); err != nil {
			return done, err
		}
		done += l
	}

	return len(p), nil
}

// call sends req and waits for the reply, which must be of type want or an
// error frame.
func (c *Conduit) call(req *frame, want byte) (*frame, error) {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := writeFrame(c.port, req); err != nil {
		return nil, fmt.Errorf("error sending %v: %v", req, err)
	}

	reply, err := readFrame(c.port)
	if err != nil {
		return nil, fmt.Errorf("error receiving reply to %v: %v", req, err)
	}

	log.WithFields(log.Fields{"request": req, "reply": reply}).Trace("LINK")

	switch reply.cmd {
	case want:
		return reply, nil
	case FrameError:
		return nil, fmt.Errorf("machine error: %s", reply.payload)
	default:
		return nil, fmt.Errorf("unexpected reply %v to %v", reply, req)
	}
}

//
func encodeRegisters(r hyppo.Registers) []byte {
	c := byte(0)
	if r.Carry {
		c = 1
	}
	return []byte{r.A, r.X, r.Y, r.Z, c}
}

//
func decodeRegisters(p []byte) (hyppo.Registers, error) {
	if len(p) != 5 {
		return hyppo.Registers{}, fmt.Errorf("invalid register block length %d", len(p))
	}
	return hyppo.Registers{A: p[0], X: p[1], Y: p[2], Z: p[3], Carry: p[4] != 0}, nil
}

//
func decodeAddress(p []byte) (uint32, []byte, error) {
	if len(p) < 4 {
		return 0, nil, fmt.Errorf("missing address")
	}
	return binary.LittleEndian.Uint32(p), p[4:], nil
}
