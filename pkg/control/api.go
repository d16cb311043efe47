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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/hyppolink/pkg/daemon"
	"github.com/xelalexv/hyppolink/pkg/hyppo"
)

//
type APIServer interface {
	Serve() error
	Stop() error
}

//
func NewAPIServer(addr string, d *daemon.Daemon) APIServer {
	return &api{address: addr, daemon: d}
}

//
type api struct {
	address string
	daemon  *daemon.Daemon
	server  *http.Server
}

//
func (a *api) Serve() error {

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:8888", a.address)
	}

	log.Infof("HyppoLink API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: a.router()}

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	if a.server != nil {
		log.Info("API server stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

//
func (a *api) router() *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "version", "GET", "/version", a.version)
	addRoute(router, "rom", "PUT", "/rom/toggle", a.toggleROM)
	addRoute(router, "drive", "GET", "/drive", a.getDrive)
	addRoute(router, "select", "PUT", "/drive/{drive:[0-9]+}", a.selectDrive)
	addRoute(router, "cdroot", "PUT", "/cd/root", a.chdirRoot)
	addRoute(router, "cd", "PUT", "/cd", a.chdir)
	addRoute(router, "file", "GET", "/file", a.readFile)
	addRoute(router, "readsector", "GET", "/sector/{sector:[0-9]+}", a.readSector)
	addRoute(router, "writesector", "PUT", "/sector/{sector:[0-9]+}", a.writeSector)
	addRoute(router, "erase", "PUT", "/erase", a.erase)
	addRoute(router, "reset", "PUT", "/sdcard/reset", a.resetCard)
	addRoute(router, "debug", "PUT", "/debug", a.debug)

	return router
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

// statusForError maps errors from the daemon to HTTP status codes.
func statusForError(err error) int {

	if _, ok := hyppo.CodeOf(err); ok {
		return http.StatusUnprocessableEntity
	}

	switch {
	case errors.Is(err, daemon.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, daemon.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, hyppo.ErrInvalidRange), errors.Is(err, hyppo.ErrNameTooLong):
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// handleDaemonError sends err with the status code fitting it. For
// hypervisor errors, JSON clients get the code as a Result.
func handleDaemonError(err error, w http.ResponseWriter, req *http.Request) bool {

	if err == nil {
		return false
	}

	if code, ok := hyppo.CodeOf(err); ok && wantsJSON(req) {
		log.Errorf("%v", err)
		sendJSONReply(&Result{Code: code, Message: err.Error()},
			http.StatusUnprocessableEntity, w)
		return true
	}

	return handleError(err, statusForError(err), w)
}

//
func getUint32Var(w http.ResponseWriter, req *http.Request, name string) (uint32, bool) {
	val, err := strconv.ParseUint(mux.Vars(req)[name], 10, 32)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return 0, false
	}
	return uint32(val), true
}

//
func getArg(req *http.Request, arg string) (string, error) {
	ret := req.URL.Query().Get(arg)
	if ret != "" {
		return url.QueryUnescape(ret)
	}
	return ret, nil
}

//
func getUint32Arg(req *http.Request, arg string) (uint32, error) {
	val, err := getArg(req, arg)
	if err != nil {
		return 0, err
	}
	ret, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: '%s'", arg, val)
	}
	return uint32(ret), nil
}

//
func setHeaders(h http.Header, json bool) {
	if json {
		h.Set("Content-Type", "application/json; charset=UTF-8")
	} else {
		h.Set("Content-Type", "text/plain; charset=UTF-8")
	}
}

//
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), false)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendBinaryReply(r io.Reader, statusCode int, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(statusCode)
	if _, err := io.Copy(w, r); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), true)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing error: %v", err)
	}
}

// FIXME: make more tolerant
func wantsJSON(req *http.Request) bool {
	return req.Header.Get("Content-Type") == "application/json"
}
