package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/julienschmidt/httprouter"
)

// decodeBody decodes the JSON request body into v, answering 422 when it is
// malformed.
func decodeBody(res http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return false
	}
	return true
}

// lookup runs a store read and writes its result, or the mapped error.
func lookup(res http.ResponseWriter, read func() (interface{}, error)) {
	v, err := read()
	if err != nil {
		respond(res, err, statusFor(err))
		return
	}
	respond(res, v, http.StatusOK)
}

func (s *Server) getDefaultProfile(res http.ResponseWriter, req *http.Request) {
	lookup(res, func() (interface{}, error) { return s.Store.DefaultProfile() })
}

func (s *Server) putDefaultProfile(res http.ResponseWriter, req *http.Request) {
	var name string
	if !decodeBody(res, req, &name) {
		return
	}

	if err := s.Store.PutDefaultProfile(name); err != nil {
		respond(res, err, statusFor(err))
		return
	}
	respond(res, nil, http.StatusNoContent)
}

func (s *Server) profiles(res http.ResponseWriter, req *http.Request) {
	lookup(res, func() (interface{}, error) {
		names, err := s.Store.ListProfiles()
		if names == nil {
			names = []string{}
		}
		return names, err
	})
}

func (s *Server) getProfile(res http.ResponseWriter, req *http.Request) {
	name := httprouter.ParamsFromContext(req.Context()).ByName("name")
	lookup(res, func() (interface{}, error) { return s.Store.Profile(name) })
}

// putProfile stores a profile. Fields missing from the body keep their
// default tuning; tuning the detector cannot run is refused.
func (s *Server) putProfile(res http.ResponseWriter, req *http.Request) {
	name := httprouter.ParamsFromContext(req.Context()).ByName("name")

	config := pipeline.DefaultConfig()
	if !decodeBody(res, req, &config) {
		return
	}

	if err := config.Validate(); err != nil {
		respond(res, err, http.StatusBadRequest)
		return
	}

	if err := s.Store.PutProfile(name, config); err != nil {
		respond(res, err, statusFor(err))
		return
	}
	respond(res, nil, http.StatusNoContent)
}

// updateProfile loads a stored profile into the live classical detector.
func (s *Server) updateProfile(res http.ResponseWriter, req *http.Request) {
	config, err := s.Store.Profile(req.URL.Query().Get("name"))
	if err != nil {
		respond(res, err, statusFor(err))
		return
	}

	err = s.detectorManager.SetConfig(config)
	switch {
	case errors.Is(err, errProfilesUnsupported):
		respond(res, err, http.StatusConflict)
	case err != nil:
		respond(res, err, statusFor(err))
	default:
		respond(res, nil, http.StatusOK)
	}
}
