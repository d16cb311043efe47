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

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

/*
	Serve answers request frames arriving on rw by executing them on machine
	m, until rw reaches EOF. This is the machine side of a Conduit. Failures
	of m are sent back as error frames, only stream errors end Serve.
*/
func Serve(rw io.ReadWriter, m hyppo.Machine) error {

	for {
		req, err := readFrame(rw)
		if err != nil {
			if err == io.EOF {
				log.Info("link closed")
				return nil
			}
			return err
		}

		reply := handle(req, m)
		log.WithFields(log.Fields{"request": req, "reply": reply}).Trace("SERVE")

		if err := writeFrame(rw, reply); err != nil {
			return fmt.Errorf("error sending reply: %v", err)
		}
	}
}

//
func handle(req *frame, m hyppo.Machine) *frame {

	switch req.cmd {

	case FrameHello:
		if !bytes.Equal(req.payload, helloDaemon) {
			return errorFrame(fmt.Errorf("unexpected hello %q", req.payload))
		}
		log.Info("daemon connected")
		return newFrame(FrameHello, helloMachine)

	case FrameTrap:
		if len(req.payload) != 6 {
			return errorFrame(fmt.Errorf("invalid trap request"))
		}
		in, _ := decodeRegisters(req.payload[1:])
		out, err := m.Trap(hyppo.Command(req.payload[0]), in)
		if err != nil {
			return errorFrame(err)
		}
		return newFrame(FrameTrap, encodeRegisters(out))

	case FrameRead:
		addr, rest, err := decodeAddress(req.payload)
		if err != nil || len(rest) != 2 {
			return errorFrame(fmt.Errorf("invalid read request"))
		}
		l := binary.LittleEndian.Uint16(rest)
		if l > maxPayload {
			return errorFrame(fmt.Errorf("read of %d bytes too long", l))
		}
		data := make([]byte, l)
		if _, err := m.ReadAt(data, addr); err != nil {
			return errorFrame(err)
		}
		return newFrame(FrameRead, data)

	case FrameWrite:
		addr, data, err := decodeAddress(req.payload)
		if err != nil {
			return errorFrame(fmt.Errorf("invalid write request"))
		}
		if _, err := m.WriteAt(data, addr); err != nil {
			return errorFrame(err)
		}
		return newFrame(FrameWrite, nil)
	}

	return errorFrame(fmt.Errorf("unknown request: %v", req))
}

//
func errorFrame(err error) *frame {
	log.Errorf("link request failed: %v", err)
	msg := []byte(err.Error())
	if len(msg) > maxPayload {
		msg = msg[:maxPayload]
	}
	return newFrame(FrameError, msg)
}
