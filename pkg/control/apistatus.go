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

	"github.com/xelalexv/hyppolink/pkg/daemon"
)

//
func (a *api) status(w http.ResponseWriter, req *http.Request) {

	stat := &Status{Status: a.daemon.GetStatus()}
	if stat.Status == daemon.StatusConnected {
		if v, err := a.daemon.Version(); err == nil {
			stat.Version = &v
		}
	}

	if wantsJSON(req) {
		sendJSONReply(stat, http.StatusOK, w)
	} else {
		sendReply([]byte(stat.String()), http.StatusOK, w)
	}
}

//
func (a *api) version(w http.ResponseWriter, req *http.Request) {

	v, err := a.daemon.Version()
	if handleDaemonError(err, w, req) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(&v, http.StatusOK, w)
	} else {
		sendReply([]byte(v.String()), http.StatusOK, w)
	}
}

//
func (a *api) toggleROM(w http.ResponseWriter, req *http.Request) {

	protected, err := a.daemon.ToggleROMWriteProtect()
	if handleDaemonError(err, w, req) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(&ROM{WriteProtected: protected}, http.StatusOK, w)
	} else {
		state := "off"
		if protected {
			state = "on"
		}
		sendReply([]byte(fmt.Sprintf("ROM write protection %s", state)),
			http.StatusOK, w)
	}
}

//
func (a *api) debug(w http.ResponseWriter, req *http.Request) {

	msg, err := getArg(req, "msg")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if handleDaemonError(a.daemon.DebugMsg(msg), w, req) {
		return
	}
	sendReply([]byte("sent"), http.StatusOK, w)
}
