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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Machine that logs all calls and answers traps with fixed
// registers.
type recorder struct {
	mutex sync.Mutex
	calls []string
	in    []Registers
	pokes []byte
	reply Registers
	err   error
}

func (r *recorder) log(c string) {
	r.mutex.Lock()
	r.calls = append(r.calls, c)
	r.mutex.Unlock()
}

func (r *recorder) Trap(cmd Command, in Registers) (Registers, error) {
	r.log("trap " + cmd.String())
	r.mutex.Lock()
	r.in = append(r.in, in)
	r.mutex.Unlock()
	return r.reply, r.err
}

func (r *recorder) Peek(addr uint32) (byte, error) {
	r.log("peek")
	return 0, r.err
}

func (r *recorder) Poke(addr uint32, v byte) error {
	r.log("poke")
	r.mutex.Lock()
	r.pokes = append(r.pokes, v)
	r.mutex.Unlock()
	return r.err
}

func (r *recorder) ReadAt(p []byte, addr uint32) (int, error) {
	r.log("read")
	return len(p), r.err
}

func (r *recorder) WriteAt(p []byte, addr uint32) (int, error) {
	r.log("write")
	return len(p), r.err
}

func TestRegisters(t *testing.T) {

	r := Registers{A: 0x01, X: 0x02, Y: 0x03, Z: 0x04, Carry: true}

	assert.Equal(t, uint32(0x04030201), r.Quad())
	assert.Equal(t, uint16(0x0302), r.XY())
	assert.Equal(t, "A=01 X=02 Y=03 Z=04 C=1", r.String())
}

func TestFindNamePointer(t *testing.T) {

	r := &recorder{reply: Registers{Carry: true}}
	gw := NewGateway(r)

	err := gw.Sequence(func(s *Session) error {
		_, err := findName(s, "AUTOBOOT.C65")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"write", "trap setname", "trap findfile"}, r.calls)
	require.Len(t, r.in, 2)
	assert.Equal(t, byte(0x00), r.in[0].X)
	assert.Equal(t, byte(0x02), r.in[0].Y)
	assert.Equal(t, uint16(AddrNameBuffer), r.in[0].XY())
}

func TestSDCardResetAddressingMode(t *testing.T) {

	tests := []struct {
		sdhc bool
		mode byte
	}{
		{true, SDCmdSDHC},
		{false, SDCmdNoSDHC},
	}

	for _, tc := range tests {
		r := &recorder{}
		gw := NewGateway(r)
		c := newSDCard(gw, newBuffer(gw))
		c.SetSDHC(tc.sdhc)
		require.NoError(t, c.Reset())
		assert.Equal(t, []byte{SDCmdReset, SDCmdEndReset, tc.mode}, r.pokes)
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "readfile", CmdReadFile.String())
	assert.Equal(t, "$7F", Command(0x7F).String())
}

func TestGatewayIssueError(t *testing.T) {

	gw := NewGateway(&recorder{err: errors.New("link down")})

	_, err := gw.Issue(CmdVersion, Registers{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
	assert.Contains(t, err.Error(), "link down")
	_, ok := CodeOf(err)
	assert.False(t, ok)
}

func TestGatewaySequenceNotInterleaved(t *testing.T) {

	rec := &recorder{}
	gw := NewGateway(rec)

	var wg sync.WaitGroup
	for ix := 0; ix < 8; ix++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			gw.Sequence(func(s *Session) error {
				s.Issue(CmdSetName, Registers{})
				s.Issue(CmdFindFile, Registers{})
				s.Issue(CmdOpenFile, Registers{})
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			gw.Issue(CmdCloseAll, Registers{})
		}()
	}
	wg.Wait()

	require.Len(t, rec.calls, 32)
	for ix := 0; ix < len(rec.calls); ix++ {
		if rec.calls[ix] == "trap setname" {
			assert.Equal(t, "trap findfile", rec.calls[ix+1])
			assert.Equal(t, "trap openfile", rec.calls[ix+2])
		}
	}
}

func TestVersionFromQuad(t *testing.T) {
	v := versionFromQuad(0x02010300)
	assert.Equal(t, Version{HyppoMajor: 0, HyppoMinor: 3, HDOSMajor: 1,
		HDOSMinor: 2}, v)
	assert.Equal(t, "hyppo 0.3, hdos 1.2", v.String())
}

func TestVersionAtLeast(t *testing.T) {

	v := Version{HyppoMajor: 1, HyppoMinor: 2, HDOSMajor: 0, HDOSMinor: 9}

	tests := []struct {
		major, minor byte
		hyppo, hdos  bool
	}{
		{0, 0, true, true},
		{0, 9, true, true},
		{0, 10, true, false},
		{1, 0, true, false},
		{1, 2, true, false},
		{1, 3, false, false},
		{2, 0, false, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.hyppo, v.HyppoAtLeast(tc.major, tc.minor),
			"hyppo %d.%d", tc.major, tc.minor)
		assert.Equal(t, tc.hdos, v.HDOSAtLeast(tc.major, tc.minor),
			"hdos %d.%d", tc.major, tc.minor)
		assert.Equal(t, tc.hyppo && tc.hdos, v.AtLeast(tc.major, tc.minor),
			"both %d.%d", tc.major, tc.minor)
	}
}

func TestErrorCodes(t *testing.T) {

	err := failure("select drive", Registers{A: ErrorNoSuchDrive})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrorNoSuchDrive))
	assert.Equal(t, "select drive failed with code $80", err.Error())

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrorNoSuchDrive, code)

	assert.NoError(t, failure("select drive", Registers{A: 0x80, Carry: true}))
	assert.False(t, IsCode(ErrInvalidRange, 0))
}

func TestSectorAddress(t *testing.T) {
	addr := make([]byte, 4)
	putSectorAddress(addr, 0x12345678)
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, addr)
}
