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


package run

import (
	"fmt"
	"reflect"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//
type setting struct {
	flag     string
	env      string
	required bool
	target   interface{}
	viper    *viper.Viper
}

/*
	bind registers the command line flag for this setting with f. Targets
	can point to string, bool, int, uint, uint32, int64, or []string. def
	has to be of the target's type, or nil for the zero value.
*/
func (s *setting) bind(f *pflag.FlagSet, short string, def interface{},
	help string) error {

	switch t := s.target.(type) {
	case *string:
		d, err := s.defaultOf(def, "")
		if err != nil {
			return err
		}
		f.StringVarP(t, s.flag, short, d.(string), help)
	case *bool:
		d, err := s.defaultOf(def, false)
		if err != nil {
			return err
		}
		f.BoolVarP(t, s.flag, short, d.(bool), help)
	case *int:
		d, err := s.defaultOf(def, 0)
		if err != nil {
			return err
		}
		f.IntVarP(t, s.flag, short, d.(int), help)
	case *uint:
		d, err := s.defaultOf(def, uint(0))
		if err != nil {
			return err
		}
		f.UintVarP(t, s.flag, short, d.(uint), help)
	case *uint32:
		d, err := s.defaultOf(def, uint32(0))
		if err != nil {
			return err
		}
		f.Uint32VarP(t, s.flag, short, d.(uint32), help)
	case *int64:
		d, err := s.defaultOf(def, int64(0))
		if err != nil {
			return err
		}
		f.Int64VarP(t, s.flag, short, d.(int64), help)
	case *[]string:
		d, err := s.defaultOf(def, []string(nil))
		if err != nil {
			return err
		}
		f.StringSliceVarP(t, s.flag, short, d.([]string), help)
	default:
		return fmt.Errorf("setting '%s' is of unsupported type %T",
			s.flag, s.target)
	}

	return nil
}

//
func (s *setting) defaultOf(def, zero interface{}) (interface{}, error) {
	if def == nil {
		return zero, nil
	}
	if s.required {
		return nil, fmt.Errorf(
			"required setting '%s' does not take a default value", s.flag)
	}
	if reflect.TypeOf(def) != reflect.TypeOf(zero) {
		return nil, fmt.Errorf(
			"default value for setting '%s' is %T, need %T", s.flag, def, zero)
	}
	return def, nil
}

// get resolves the setting through Viper, i.e. from flag, environment, or
// default, in that order, and stores the value in the target.
func (s *setting) get() (interface{}, error) {

	var val interface{}
	var missing bool

	switch t := s.target.(type) {
	case *string:
		*t = s.viper.GetString(s.flag)
		val, missing = *t, *t == ""
	case *bool:
		*t = s.viper.GetBool(s.flag)
		val, missing = *t, !*t
	case *int:
		*t = s.viper.GetInt(s.flag)
		val, missing = *t, *t == 0
	case *uint:
		*t = s.viper.GetUint(s.flag)
		val, missing = *t, *t == 0
	case *uint32:
		*t = s.viper.GetUint32(s.flag)
		val, missing = *t, *t == 0
	case *int64:
		*t = s.viper.GetInt64(s.flag)
		val, missing = *t, *t == 0
	case *[]string:
		*t = splitList(s.viper.GetStringSlice(s.flag))
		val, missing = *t, len(*t) == 0
	default:
		return nil, fmt.Errorf("setting '%s' is of unsupported type %T",
			s.flag, s.target)
	}

	if s.viper.IsSet(s.flag) {
		log.Tracef("setting %s: '%v'", s.flag, val)
	} else {
		log.Tracef("setting %s: '%v' (default)", s.flag, val)
	}

	if s.required && missing {
		msg := fmt.Sprintf(
			"you need to specify the --%s command line flag", s.flag)
		if s.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, s.env)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return val, nil
}

// splitList splits comma separated list elements, as they come from
// environment variables.
func splitList(l []string) []string {
	ret := make([]string, 0, len(l))
	for _, e := range l {
		for _, p := range strings.Split(e, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ret = append(ret, p)
			}
		}
	}
	return ret
}
