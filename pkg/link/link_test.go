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
	"errors"
	"io/ioutil"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
	"github.com/xelalexv/hyppolink/pkg/sim"
)

// failing is a machine whose every access fails.
type failing struct{}

func (failing) Trap(hyppo.Command, hyppo.Registers) (hyppo.Registers, error) {
	return hyppo.Registers{}, errors.New("trap exploded")
}
func (failing) Peek(uint32) (byte, error)           { return 0, errors.New("no peek") }
func (failing) Poke(uint32, byte) error             { return errors.New("no poke") }
func (failing) ReadAt([]byte, uint32) (int, error)  { return 0, errors.New("no read") }
func (failing) WriteAt([]byte, uint32) (int, error) { return 0, errors.New("no write") }

// connect runs a link server for m on one end of a pipe, and returns a
// synced conduit on the other end, plus the channel receiving the server's
// result.
func connect(t *testing.T, m hyppo.Machine) (*Conduit, chan error) {

	daemonSide, machineSide := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- Serve(machineSide, m)
		machineSide.Close()
	}()

	c := NewConduit(daemonSide)
	require.NoError(t, c.Sync())
	return c, done
}

func TestLinkWithSimulatedMachine(t *testing.T) {

	dir := t.TempDir()
	data := bytes.Repeat([]byte("0123456789"), 100)
	require.NoError(t, ioutil.WriteFile(
		filepath.Join(dir, "DATA.TXT"), data, 0644))

	m := sim.NewMachine(sim.Config{
		Drives: []string{dir}, Image: sim.NewMemoryImage(16)})
	c, done := connect(t, m)

	h := hyppo.New(c)

	v, err := h.Version()
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultVersion, v)

	read, err := h.ReadFile("data.txt")
	require.NoError(t, err)
	assert.Equal(t, data, read)

	_, err = h.Open("missing")
	assert.True(t, hyppo.IsCode(err, 0xFF))

	require.NoError(t, h.Card.Open())
	require.NoError(t, h.Buffer.Map())
	sector := bytes.Repeat([]byte{0xA5}, hyppo.SectorSize)
	_, err = h.Buffer.Write(sector)
	require.NoError(t, err)
	_, err = h.Card.WriteSector(7)
	require.NoError(t, err)
	require.NoError(t, h.Buffer.Clear())
	_, err = h.Card.ReadSector(7)
	require.NoError(t, err)
	buf, err := h.Buffer.Bytes()
	require.NoError(t, err)
	assert.Equal(t, sector, buf)
	require.NoError(t, h.Buffer.Unmap())

	require.NoError(t, c.Close())
	assert.NoError(t, <-done)
}

func TestLinkLargeTransfers(t *testing.T) {

	m := sim.NewMachine(sim.Config{})
	c, done := connect(t, m)

	data := make([]byte, 3*maxPayload+123)
	for ix := range data {
		data[ix] = byte(ix % 251)
	}

	n, err := c.WriteAt(data, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	read := make([]byte, len(data))
	n, err = c.ReadAt(read, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, read)

	require.NoError(t, c.Poke(0x20, 0x99))
	v, err := c.Peek(0x20)
	require.NoError(t, err)
	assert.Equal(t, byte(0x99), v)

	require.NoError(t, c.Close())
	assert.NoError(t, <-done)
}

func TestLinkMachineErrors(t *testing.T) {

	c, done := connect(t, failing{})

	_, err := c.Trap(hyppo.CmdVersion, hyppo.Registers{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trap exploded")

	_, err = c.Peek(0)
	assert.Error(t, err)
	assert.Error(t, c.Poke(0, 1))

	// link stays usable after errors
	_, err = c.ReadAt(make([]byte, 4), 0)
	assert.Contains(t, err.Error(), "no read")

	require.NoError(t, c.Close())
	assert.NoError(t, <-done)
}

func TestLinkBadHello(t *testing.T) {

	daemonSide, machineSide := net.Pipe()
	defer daemonSide.Close()

	go func() {
		Serve(machineSide, failing{})
		machineSide.Close()
	}()

	c := NewConduit(daemonSide)
	_, err := c.call(newFrame(FrameHello, []byte("oops")), FrameHello)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected hello")
}

func TestFrames(t *testing.T) {

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, newFrame(FrameTrap,
		[]byte{0x06, 0x00, 0x01, 0x00, 0x00, 0x00})))
	assert.Equal(t, []byte{'t', 0x06, 0x00, 0x06, 0x00, 0x01, 0x00, 0x00, 0x00},
		buf.Bytes())

	f, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(FrameTrap), f.cmd)
	assert.Equal(t, "t[6]", f.String())

	assert.Error(t, writeFrame(&buf, newFrame(FrameWrite,
		make([]byte, maxPayload+1))))

	_, err = readFrame(bytes.NewReader([]byte{'r', 0xFF, 0xFF}))
	assert.Error(t, err)

	_, err = readFrame(bytes.NewReader([]byte{'r', 0x04, 0x00, 0x01}))
	assert.Error(t, err)
}

func TestRegisterCodec(t *testing.T) {

	in := hyppo.Registers{A: 1, X: 2, Y: 3, Z: 4, Carry: true}
	out, err := decodeRegisters(encodeRegisters(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeRegisters([]byte{1, 2})
	assert.Error(t, err)
}
