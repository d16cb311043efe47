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

package hyppo_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
	"github.com/xelalexv/hyppolink/pkg/sim"
)

const testSectors = 64

// charROM returns 4096 bytes of character data, with a few landmark bytes
// at known offsets.
func charROM() []byte {
	ret := make([]byte, 4096)
	for ix := range ret {
		ret[ix] = byte(ix * 7)
	}
	ret[0], ret[1] = 0x3C, 0x66
	ret[510], ret[511] = 0x18, 0x00
	ret[4095] = 0xF0
	return ret
}

// newTestHyppo creates a driver on a simulated machine with two drives. The
// first drive holds CHARROM.M65, SHORT.TXT, and a folder SUB with INNER.TXT.
func newTestHyppo(t *testing.T) (*hyppo.Hyppo, *sim.Machine) {

	drive0 := t.TempDir()
	drive1 := t.TempDir()

	require.NoError(t, ioutil.WriteFile(
		filepath.Join(drive0, "CHARROM.M65"), charROM(), 0644))
	require.NoError(t, ioutil.WriteFile(
		filepath.Join(drive0, "SHORT.TXT"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(drive0, "SUB"), 0755))
	require.NoError(t, ioutil.WriteFile(
		filepath.Join(drive0, "SUB", "INNER.TXT"), []byte("inner"), 0644))

	m := sim.NewMachine(sim.Config{
		Drives: []string{drive0, drive1},
		Image:  sim.NewMemoryImage(testSectors),
	})
	t.Cleanup(func() { m.Close() })

	return hyppo.New(m), m
}

func TestCharROMRead(t *testing.T) {

	h, _ := newTestHyppo(t)
	want := charROM()

	require.NoError(t, h.CloseAll())
	fd, err := h.Open("CHARROM.M65")
	require.NoError(t, err)
	assert.True(t, fd.Valid())

	buf := make([]byte, hyppo.SectorSize)
	for chunk := 0; chunk < 8; chunk++ {
		n, err := h.Read512(buf)
		require.NoError(t, err)
		require.Equal(t, hyppo.SectorSize, n, "chunk %d", chunk)
		assert.Equal(t, want[chunk*512:(chunk+1)*512], buf, "chunk %d", chunk)
	}

	assert.Equal(t, byte(0xF0), buf[511])

	// end of file leaves the buffer as it was, and stays
	for ix := 0; ix < 2; ix++ {
		n, err := h.Read512(buf)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, want[3584:], buf)
	}

	require.NoError(t, h.Close(fd))
}

func TestCharROMLandmarks(t *testing.T) {

	h, _ := newTestHyppo(t)

	fd, err := h.Open("charrom.m65")
	require.NoError(t, err)
	defer h.Close(fd)

	buf := make([]byte, hyppo.SectorSize)
	n, err := h.Read512(buf)
	require.NoError(t, err)
	require.Equal(t, 512, n)
	assert.Equal(t, []byte{0x3C, 0x66}, buf[:2])
	assert.Equal(t, []byte{0x18, 0x00}, buf[510:])
}

func TestShortFile(t *testing.T) {

	h, _ := newTestHyppo(t)

	fd, err := h.Open("SHORT.TXT")
	require.NoError(t, err)
	defer h.Close(fd)

	buf := make([]byte, hyppo.SectorSize)
	n, err := h.Read512(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = h.Read512(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpenFailures(t *testing.T) {

	h, _ := newTestHyppo(t)

	tests := []struct {
		name string
		code byte
	}{
		{"NOSUCH.FILE", 0x88},
		{"SUB", 0x86},
		{"SUB/INNER.TXT", 0x88},
		{"", 0x88},
	}

	for _, tc := range tests {
		fd, err := h.Open(tc.name)
		require.Error(t, err, tc.name)
		assert.Equal(t, hyppo.InvalidDescriptor, fd, tc.name)
		assert.False(t, fd.Valid())
		assert.True(t, hyppo.IsCode(err, 0xFF), tc.name)

		code, err := h.LastError()
		require.NoError(t, err)
		assert.Equal(t, tc.code, code, tc.name)
	}

	fd, err := h.Open(strings.Repeat("X", hyppo.MaxNameLength+1))
	assert.Equal(t, hyppo.InvalidDescriptor, fd)
	assert.True(t, hyppo.IsCode(err, 0xFF))
}

func TestTooManyOpenFiles(t *testing.T) {

	h, _ := newTestHyppo(t)

	for ix := 0; ix < 4; ix++ {
		fd, err := h.Open("SHORT.TXT")
		require.NoError(t, err)
		assert.Equal(t, hyppo.Descriptor(ix), fd)
	}

	_, err := h.Open("SHORT.TXT")
	require.Error(t, err)
	code, err := h.LastError()
	require.NoError(t, err)
	assert.Equal(t, byte(0x84), code)

	require.NoError(t, h.CloseAll())
	_, err = h.Open("SHORT.TXT")
	assert.NoError(t, err)
}

func TestCloseAllThenRead(t *testing.T) {

	h, _ := newTestHyppo(t)

	fd, err := h.Open("SHORT.TXT")
	require.NoError(t, err)
	require.NoError(t, h.CloseAll())

	buf := make([]byte, hyppo.SectorSize)
	n, err := h.Read512(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// closing an already closed descriptor is left to the hypervisor
	assert.NoError(t, h.Close(fd))
	code, err := h.LastError()
	require.NoError(t, err)
	assert.Equal(t, byte(0x89), code)
}

func TestReadShortBuffer(t *testing.T) {
	h, _ := newTestHyppo(t)
	_, err := h.Read512(make([]byte, 100))
	assert.Equal(t, hyppo.ErrShortBuffer, err)
}

func TestSelectDrive(t *testing.T) {

	h, _ := newTestHyppo(t)

	code, err := h.SelectDrive(2)
	require.Error(t, err)
	assert.Equal(t, hyppo.ErrorNoSuchDrive, code)
	assert.True(t, hyppo.IsCode(err, hyppo.ErrorNoSuchDrive))

	cur, err := h.CurrentDrive()
	require.NoError(t, err)
	assert.Equal(t, byte(0), cur)

	_, err = h.SelectDrive(1)
	require.NoError(t, err)

	cur, err = h.CurrentDrive()
	require.NoError(t, err)
	assert.Equal(t, byte(1), cur)

	def, err := h.DefaultDrive()
	require.NoError(t, err)
	assert.Equal(t, byte(0), def)

	// drive 1 is empty
	_, err = h.Open("SHORT.TXT")
	assert.Error(t, err)

	_, err = h.ChdirRoot()
	require.NoError(t, err)
	cur, err = h.CurrentDrive()
	require.NoError(t, err)
	assert.Equal(t, byte(0), cur)

	_, err = h.Open("SHORT.TXT")
	assert.NoError(t, err)
}

func TestChdir(t *testing.T) {

	h, _ := newTestHyppo(t)

	_, err := h.Chdir("sub")
	require.NoError(t, err)

	fd, err := h.Open("INNER.TXT")
	require.NoError(t, err)
	require.NoError(t, h.Close(fd))

	_, err = h.Chdir("..")
	require.NoError(t, err)
	_, err = h.Open("INNER.TXT")
	assert.Error(t, err)

	// never above the root
	_, err = h.Chdir("..")
	require.NoError(t, err)
	fd, err = h.Open("SHORT.TXT")
	require.NoError(t, err)
	require.NoError(t, h.Close(fd))

	tests := []struct {
		dir  string
		code byte
	}{
		{"SHORT.TXT", 0x87},
		{"NOSUCH", 0x88},
		{"SUB/X", 0x88},
	}

	for _, tc := range tests {
		code, err := h.Chdir(tc.dir)
		require.Error(t, err, tc.dir)
		assert.Equal(t, tc.code, code, tc.dir)
		assert.True(t, hyppo.IsCode(err, tc.code), tc.dir)
	}

	_, err = h.Chdir(strings.Repeat("D", hyppo.MaxNameLength+1))
	assert.Equal(t, hyppo.ErrNameTooLong, err)
}

func TestFileReader(t *testing.T) {

	h, _ := newTestHyppo(t)

	f, err := h.OpenFile("CHARROM.M65")
	require.NoError(t, err)
	assert.Equal(t, "CHARROM.M65", f.Name())
	assert.True(t, f.Descriptor().Valid())

	data, err := ioutil.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, charROM(), data)
	assert.True(t, f.EOF())

	n, err := f.ReadChunk(make([]byte, hyppo.SectorSize))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Read(make([]byte, 10))
	assert.Equal(t, hyppo.ErrFileClosed, err)
	_, err = f.ReadChunk(make([]byte, hyppo.SectorSize))
	assert.Equal(t, hyppo.ErrFileClosed, err)
}

func TestReadFile(t *testing.T) {

	h, _ := newTestHyppo(t)

	data, err := h.ReadFile("short.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = h.ReadFile("missing")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {

	h, _ := newTestHyppo(t)
	v, err := h.Version()
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultVersion, v)

	old := hyppo.Version{HyppoMajor: 0, HyppoMinor: 95, HDOSMajor: 0,
		HDOSMinor: 11}
	h = hyppo.New(sim.NewMachine(sim.Config{Version: &old}))

	v, err = h.Version()
	require.NoError(t, err)
	assert.Equal(t, old, v)
	assert.False(t, v.AtLeast(1, 0))
	assert.True(t, v.HyppoAtLeast(0, 95))
	assert.False(t, v.HDOSAtLeast(0, 12))
}

func TestToggleROMWriteProtect(t *testing.T) {

	h, m := newTestHyppo(t)
	assert.True(t, m.IsROMWriteProtected())

	protected, err := h.ToggleROMWriteProtect()
	require.NoError(t, err)
	assert.False(t, protected)
	assert.False(t, m.IsROMWriteProtected())

	protected, err = h.ToggleROMWriteProtect()
	require.NoError(t, err)
	assert.True(t, protected)
}

func TestDebugMsg(t *testing.T) {
	h, m := newTestHyppo(t)
	require.NoError(t, h.DebugMsg("hello MEGA65"))
	require.NoError(t, h.DebugMsg("again"))
	assert.Equal(t, []string{"hello MEGA65", "again"}, m.DebugLines())
}

func TestBufferMapping(t *testing.T) {

	h, _ := newTestHyppo(t)

	assert.False(t, h.Buffer.IsMapped())
	require.NoError(t, h.Buffer.Map())
	assert.True(t, h.Buffer.IsMapped())
	assert.Equal(t, hyppo.ErrBufferMapped, h.Buffer.Map())

	require.NoError(t, h.Buffer.Unmap())
	assert.False(t, h.Buffer.IsMapped())
	assert.NoError(t, h.Buffer.Unmap())
}

func TestBufferWindow(t *testing.T) {

	h, m := newTestHyppo(t)

	_, err := h.Buffer.Write([]byte{0xAB, 0xCD})
	require.NoError(t, err)

	v, err := m.Peek(hyppo.AddrBufferWindow)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0xAB), v)

	require.NoError(t, h.Buffer.Map())
	v, err = m.Peek(hyppo.AddrBufferWindow + 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCD), v)
	require.NoError(t, h.Buffer.Unmap())
}

func TestBufferLock(t *testing.T) {

	h, _ := newTestHyppo(t)

	assert.False(t, h.Buffer.IsLocked())
	require.True(t, h.Buffer.Lock(context.Background()))
	assert.True(t, h.Buffer.IsLocked())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, h.Buffer.Lock(ctx))

	h.Buffer.Unlock()
	assert.False(t, h.Buffer.IsLocked())
	h.Buffer.Unlock()
}

func TestSectorReadWrite(t *testing.T) {

	h, m := newTestHyppo(t)

	require.NoError(t, h.Card.Fast())
	assert.True(t, m.IsFast())
	require.NoError(t, h.Card.Open())
	require.NoError(t, h.Buffer.Map())
	defer h.Buffer.Unmap()

	data := bytes.Repeat([]byte{0x12, 0x34, 0x56, 0x78}, 128)
	_, err := h.Buffer.Write(data)
	require.NoError(t, err)

	status, err := h.Card.WriteSector(5)
	require.NoError(t, err)
	assert.Equal(t, byte(0), status)

	require.NoError(t, h.Buffer.Clear())
	buf, err := h.Buffer.Bytes()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, hyppo.SectorSize), buf)

	_, err = h.Card.ReadSector(5)
	require.NoError(t, err)
	buf, err = h.Buffer.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, buf)

	status, err = h.Card.ReadSector(testSectors)
	require.Error(t, err)
	assert.NotZero(t, status&hyppo.SDStatusError)
	assert.True(t, hyppo.IsCode(err, status))

	// controller recovers after reset
	require.NoError(t, h.Card.Reset())
	_, err = h.Card.ReadSector(5)
	assert.NoError(t, err)
}

func TestSectorAddressingAfterReset(t *testing.T) {

	h, _ := newTestHyppo(t)

	require.NoError(t, h.Card.Reset())
	require.NoError(t, h.Buffer.Map())
	defer h.Buffer.Unmap()

	require.NoError(t, h.Buffer.Clear())
	_, err := h.Card.WriteSector(0)
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0xAA}, hyppo.SectorSize)
	_, err = h.Buffer.Write(data)
	require.NoError(t, err)
	_, err = h.Card.WriteSector(1)
	require.NoError(t, err)

	_, err = h.Card.ReadSector(0)
	require.NoError(t, err)
	buf, err := h.Buffer.Bytes()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, hyppo.SectorSize), buf)

	_, err = h.Card.ReadSector(1)
	require.NoError(t, err)
	buf, err = h.Buffer.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, buf)
}

func TestSectorByteAddressing(t *testing.T) {

	for _, sdhc := range []bool{true, false} {

		img := sim.NewMemoryImage(8)
		m := sim.NewMachine(sim.Config{Image: img})
		h := hyppo.New(m)

		h.Card.SetSDHC(sdhc)
		require.NoError(t, h.Card.Reset())

		data := bytes.Repeat([]byte{0x3C}, hyppo.SectorSize)
		_, err := h.Buffer.Write(data)
		require.NoError(t, err)
		_, err = h.Card.WriteSector(3)
		require.NoError(t, err, "sdhc=%v", sdhc)

		buf := make([]byte, hyppo.SectorSize)
		_, err = img.ReadAt(buf, 3*hyppo.SectorSize)
		require.NoError(t, err)
		assert.Equal(t, data, buf, "sdhc=%v", sdhc)

		m.Close()
	}
}

func TestErase(t *testing.T) {

	h, _ := newTestHyppo(t)
	require.NoError(t, h.Card.Open())
	require.NoError(t, h.Buffer.Map())
	defer h.Buffer.Unmap()

	data := bytes.Repeat([]byte{0xEE}, hyppo.SectorSize)
	for n := uint32(1); n <= 6; n++ {
		_, err := h.Buffer.Write(data)
		require.NoError(t, err)
		_, err = h.Card.WriteSector(n)
		require.NoError(t, err)
	}

	assert.Equal(t, hyppo.ErrInvalidRange, h.Card.Erase(4, 3))
	require.NoError(t, h.Card.Erase(2, 4))
	require.NoError(t, h.Card.Erase(6, 6))

	zero := make([]byte, hyppo.SectorSize)
	expected := map[uint32][]byte{
		1: data, 2: zero, 3: zero, 4: zero, 5: data, 6: zero}

	for n := uint32(1); n <= 6; n++ {
		_, err := h.Card.ReadSector(n)
		require.NoError(t, err)
		buf, err := h.Buffer.Bytes()
		require.NoError(t, err)
		assert.Equal(t, expected[n], buf, "sector %d", n)
	}

	err := h.Card.Erase(testSectors-1, testSectors)
	assert.Error(t, err)
}
