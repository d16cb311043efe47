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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
	"github.com/xelalexv/hyppolink/pkg/sim"
)

//
func newTestDaemon(t *testing.T) (*Daemon, *sim.Machine) {

	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "AUTOBOOT.C65"),
		bytes.Repeat([]byte{0x4C}, 1300), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "GAMES"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "GAMES", "ELITE.PRG"),
		[]byte("elite"), 0644))

	m := sim.NewMachine(sim.Config{
		Drives: []string{dir},
		Image:  sim.NewMemoryImage(32),
	})
	t.Cleanup(func() { m.Close() })

	d := NewLocalDaemon(m)
	require.NoError(t, d.prepare())
	return d, m
}

func TestPrepare(t *testing.T) {
	d, m := newTestDaemon(t)
	assert.True(t, m.IsFast())
	assert.Equal(t, StatusConnected, d.GetStatus())
}

func TestNotConnected(t *testing.T) {

	d := NewDaemon("/dev/null-does-not-exist", 0)
	assert.Equal(t, StatusDisconnected, d.GetStatus())

	_, err := d.Version()
	assert.Equal(t, ErrNotConnected, err)
	_, err = d.ReadSector(0)
	assert.Equal(t, ErrNotConnected, err)
}

func TestServeStop(t *testing.T) {

	d, _ := newTestDaemon(t)

	done := make(chan error)
	go func() {
		done <- d.Serve()
	}()

	d.Stop()
	d.Stop()

	select {
	case err := <-done:
		assert.Equal(t, ErrDaemonStopped, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestReadFile(t *testing.T) {

	d, _ := newTestDaemon(t)

	var out bytes.Buffer
	n, err := d.ReadFile("autoboot.c65", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), n)
	assert.Equal(t, bytes.Repeat([]byte{0x4C}, 1300), out.Bytes())

	out.Reset()
	_, err = d.ReadFile("ELITE.PRG", &out)
	require.Error(t, err)
	assert.True(t, hyppo.IsCode(err, 0xFF))

	code, err := d.Chdir("games", false)
	require.NoError(t, err)
	assert.Equal(t, byte(0), code)

	_, err = d.ReadFile("ELITE.PRG", &out)
	require.NoError(t, err)
	assert.Equal(t, "elite", out.String())

	_, err = d.Chdir("", true)
	require.NoError(t, err)
	out.Reset()
	_, err = d.ReadFile("AUTOBOOT.C65", &out)
	assert.NoError(t, err)
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestReadFileOutputFailure(t *testing.T) {

	d, _ := newTestDaemon(t)

	_, err := d.ReadFile("AUTOBOOT.C65", brokenWriter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutput))
	assert.False(t, isTransportError(err))
	assert.Len(t, d.reconnect, 0)

	var out bytes.Buffer
	n, err := d.ReadFile("AUTOBOOT.C65", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), n)
}

func TestDrives(t *testing.T) {

	d, _ := newTestDaemon(t)

	cur, def, err := d.GetDrive()
	require.NoError(t, err)
	assert.Equal(t, byte(0), cur)
	assert.Equal(t, byte(0), def)

	code, err := d.SelectDrive(3)
	require.Error(t, err)
	assert.Equal(t, hyppo.ErrorNoSuchDrive, code)

	_, err = d.SelectDrive(0)
	assert.NoError(t, err)
}

func TestSectors(t *testing.T) {

	d, _ := newTestDaemon(t)

	data := bytes.Repeat([]byte{0xC6, 0x5A}, hyppo.SectorSize/2)
	require.NoError(t, d.WriteSector(9, data))

	read, err := d.ReadSector(9)
	require.NoError(t, err)
	assert.Equal(t, data, read)

	assert.Error(t, d.WriteSector(9, data[:100]))

	require.NoError(t, d.Erase(8, 10))
	read, err = d.ReadSector(9)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, hyppo.SectorSize), read)

	assert.Equal(t, hyppo.ErrInvalidRange, d.Erase(10, 8))

	_, err = d.ReadSector(32)
	require.Error(t, err)
	_, ok := hyppo.CodeOf(err)
	assert.True(t, ok)

	// buffer is unmapped after each operation, and card usable after reset
	require.NoError(t, d.ResetCard())
	_, err = d.ReadSector(9)
	assert.NoError(t, err)
}

func TestMiscOps(t *testing.T) {

	d, m := newTestDaemon(t)

	v, err := d.Version()
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultVersion, v)

	protected, err := d.ToggleROMWriteProtect()
	require.NoError(t, err)
	assert.False(t, protected)

	require.NoError(t, d.DebugMsg("ping"))
	assert.Equal(t, []string{"ping"}, m.DebugLines())
}

func TestBusy(t *testing.T) {

	d, _ := newTestDaemon(t)

	require.True(t, d.hyppo.Buffer.Lock(context.Background()))

	start := time.Now()
	_, err := d.Version()
	assert.Equal(t, ErrBusy, err)
	assert.True(t, time.Since(start) >= lockTimeout)

	d.hyppo.Buffer.Unlock()
	_, err = d.Version()
	assert.NoError(t, err)
}

func TestIsTransportError(t *testing.T) {

	tests := []struct {
		err       error
		transport bool
	}{
		{errors.New("broken pipe"), true},
		{&hyppo.Error{Op: "open", Code: 0xFF}, false},
		{hyppo.ErrInvalidRange, false},
		{hyppo.ErrBufferMapped, false},
		{hyppo.ErrShortBuffer, false},
		{fmt.Errorf("cannot read: %w", hyppo.ErrInvalidRange), false},
		{fmt.Errorf("%w: broken pipe", ErrOutput), false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.transport, isTransportError(tc.err), tc.err.Error())
	}
}
