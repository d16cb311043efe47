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
	"encoding/binary"
	"fmt"
	"io"
)

//
const FrameHello = 'h'  // hello, for syncing both sides
const FrameTrap = 't'   // issue trap
const FrameRead = 'r'   // read memory
const FrameWrite = 'w'  // write memory
const FrameError = 'e'  // error reply, payload is message
const maxPayload = 4096 // payload length on the wire is 16 bit
const headerLength = 3

//
var helloDaemon = []byte("hlod")
var helloMachine = []byte("hlom")

//
type frame struct {
	cmd     byte
	payload []byte
}

//
func newFrame(cmd byte, payload []byte) *frame {
	return &frame{cmd: cmd, payload: payload}
}

//
func (f *frame) String() string {
	return fmt.Sprintf("%c[%d]", f.cmd, len(f.payload))
}

//
func readFrame(r io.Reader) (*frame, error) {

	head := make([]byte, headerLength)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}

	l := binary.LittleEndian.Uint16(head[1:])
	if l > maxPayload {
		return nil, fmt.Errorf("corrupted frame, excessive length %d", l)
	}

	f := newFrame(head[0], make([]byte, l))
	if _, err := io.ReadFull(r, f.payload); err != nil {
		return nil, fmt.Errorf("error reading frame payload: %v", err)
	}

	return f, nil
}

//
func writeFrame(w io.Writer, f *frame) error {

	if len(f.payload) > maxPayload {
		return fmt.Errorf("frame payload too long: %d", len(f.payload))
	}

	buf := make([]byte, headerLength+len(f.payload))
	buf[0] = f.cmd
	binary.LittleEndian.PutUint16(buf[1:], uint16(len(f.payload)))
	copy(buf[headerLength:], f.payload)

	_, err := w.Write(buf)
	return err
}

// encodeAddress builds the payload head for read & write frames.
func encodeAddress(addr uint32, extra int) []byte {
	ret := make([]byte, 4, 4+extra)
	binary.LittleEndian.PutUint32(ret, addr)
	return ret
}
