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

package control

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
func (a *api) readFile(w http.ResponseWriter, req *http.Request) {

	name, err := getArg(req, "name")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	if name == "" {
		handleError(fmt.Errorf("no file name given"),
			http.StatusUnprocessableEntity, w)
		return
	}

	out := &streamWriter{w: w}
	if _, err := a.daemon.ReadFile(name, out); err != nil {
		err = fmt.Errorf("cannot read %s: %w", name, err)
		if out.started {
			// status is out already, all we can do is cut the reply short
			log.Errorf("%v", err)
			return
		}
		handleDaemonError(err, w, req)
		return
	}

	out.start()
}

// streamWriter sends the reply header with the first chunk of data, so that
// errors up to that point can still be reported with a proper status.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

//
func (s *streamWriter) start() {
	if !s.started {
		s.w.Header().Set("Content-Type", "application/octet-stream")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
}

//
func (s *streamWriter) Write(p []byte) (int, error) {
	s.start()
	n, err := s.w.Write(p)
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

//
func (a *api) readSector(w http.ResponseWriter, req *http.Request) {

	sector, ok := getUint32Var(w, req, "sector")
	if !ok {
		return
	}

	data, err := a.daemon.ReadSector(sector)
	if err != nil {
		handleDaemonError(
			fmt.Errorf("cannot read sector %d: %w", sector, err), w, req)
		return
	}

	sendBinaryReply(bytes.NewReader(data), http.StatusOK, w)
}

//
func (a *api) writeSector(w http.ResponseWriter, req *http.Request) {

	sector, ok := getUint32Var(w, req, "sector")
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, hyppo.SectorSize+1))
	if handleError(err, http.StatusInternalServerError, w) {
		return
	}
	if len(data) != hyppo.SectorSize {
		handleError(fmt.Errorf("sector data must be %d bytes, got %d",
			hyppo.SectorSize, len(data)), http.StatusUnprocessableEntity, w)
		return
	}

	if err := a.daemon.WriteSector(sector, data); err != nil {
		handleDaemonError(
			fmt.Errorf("cannot write sector %d: %w", sector, err), w, req)
		return
	}

	sendReply([]byte(fmt.Sprintf("wrote sector %d", sector)), http.StatusOK, w)
}

//
func (a *api) erase(w http.ResponseWriter, req *http.Request) {

	first, err := getUint32Arg(req, "first")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	last, err := getUint32Arg(req, "last")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if err := a.daemon.Erase(first, last); err != nil {
		handleDaemonError(fmt.Errorf("cannot erase sectors %d-%d: %w",
			first, last, err), w, req)
		return
	}

	sendReply([]byte(fmt.Sprintf("erased sectors %d-%d", first, last)),
		http.StatusOK, w)
}

//
func (a *api) resetCard(w http.ResponseWriter, req *http.Request) {
	if handleDaemonError(a.daemon.ResetCard(), w, req) {
		return
	}
	sendReply([]byte("SD card reset"), http.StatusOK, w)
}
