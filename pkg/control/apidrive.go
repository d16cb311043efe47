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
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

//
func (a *api) getDrive(w http.ResponseWriter, req *http.Request) {

	current, def, err := a.daemon.GetDrive()
	if handleDaemonError(err, w, req) {
		return
	}

	d := &Drive{Current: current, Default: def}
	if wantsJSON(req) {
		sendJSONReply(d, http.StatusOK, w)
	} else {
		sendReply([]byte(d.String()), http.StatusOK, w)
	}
}

//
func (a *api) selectDrive(w http.ResponseWriter, req *http.Request) {

	drive, err := strconv.ParseUint(mux.Vars(req)["drive"], 10, 8)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	code, err := a.daemon.SelectDrive(byte(drive))
	if err != nil {
		handleDaemonError(fmt.Errorf("cannot select drive %d: %w", drive, err),
			w, req)
		return
	}

	sendResult(&Result{Code: code,
		Message: fmt.Sprintf("selected drive %d", drive)}, w, req)
}

//
func (a *api) chdir(w http.ResponseWriter, req *http.Request) {

	dir, err := getArg(req, "dir")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	if dir == "" {
		handleError(fmt.Errorf("no directory given"),
			http.StatusUnprocessableEntity, w)
		return
	}

	code, err := a.daemon.Chdir(dir, false)
	if err != nil {
		handleDaemonError(fmt.Errorf("cannot change to %s: %w", dir, err), w, req)
		return
	}

	sendResult(&Result{Code: code,
		Message: fmt.Sprintf("changed to %s", dir)}, w, req)
}

//
func (a *api) chdirRoot(w http.ResponseWriter, req *http.Request) {

	code, err := a.daemon.Chdir("", true)
	if err != nil {
		handleDaemonError(
			fmt.Errorf("cannot change to root directory: %w", err), w, req)
		return
	}

	sendResult(&Result{Code: code,
		Message: "changed to root directory of drive 0"}, w, req)
}

//
func sendResult(r *Result, w http.ResponseWriter, req *http.Request) {
	if wantsJSON(req) {
		sendJSONReply(r, http.StatusOK, w)
	} else {
		sendReply([]byte(r.Message), http.StatusOK, w)
	}
}
