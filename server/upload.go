package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/pipeline"
	"gocv.io/x/gocv"
)

const defaultCueColor = "White"

// upload is a decoded multipart analysis request. Image must be closed.
type upload struct {
	Image gocv.Mat
	Form  map[string]string
}

func (u *upload) Close() error {
	return u.Image.Close()
}

func badRequest(format string, args ...interface{}) error {
	return ErrBadRequest{fmt.Errorf(format, args...)}
}

// readUpload parses a multipart body holding an image under "file" and
// decodes the image fully in memory.
func (s *Server) readUpload(res http.ResponseWriter, req *http.Request) (*upload, error) {
	req.Body = http.MaxBytesReader(res, req.Body, s.MaxUploadBytes)

	if err := req.ParseMultipartForm(s.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest("upload exceeds %d bytes", s.MaxUploadBytes)
		}
		return nil, badRequest("unable to parse multipart form: %w", err)
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("file")
	if err != nil {
		return nil, badRequest("missing 'file' part")
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, badRequest("no file selected")
	}
	if !s.allowedFile(header.Filename) {
		return nil, badRequest("file type %q not allowed", filepath.Ext(header.Filename))
	}

	buf, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read upload: %w", err)
	}

	img, err := pipeline.DecodeImage(buf)
	if err != nil {
		img.Close()
		return nil, err
	}

	form := make(map[string]string, len(req.MultipartForm.Value))
	for k, v := range req.MultipartForm.Value {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}

	return &upload{Image: img, Form: form}, nil
}

func (s *Server) allowedFile(name string) bool {
	if len(s.AllowedExtensions) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// jsonField decodes an optional JSON form field into v. Absent or empty
// fields leave v untouched.
func (u *upload) jsonField(name string, v interface{}) error {
	raw := strings.TrimSpace(u.Form[name])
	if raw == "" || raw == "null" {
		return nil
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return badRequest("invalid %s: %w", name, err)
	}
	return nil
}

func (u *upload) cueColor() string {
	if c := strings.TrimSpace(u.Form["cue_ball_color"]); c != "" {
		return c
	}
	return defaultCueColor
}

// detectRequest builds the detector hints shared by every upload endpoint.
func (u *upload) detectRequest() (pipeline.Request, error) {
	req := pipeline.Request{CueColor: u.cueColor()}

	if err := u.jsonField("table_area", &req.TableArea); err != nil {
		return req, err
	}
	if err := geometry.ValidateTableArea(req.TableArea); err != nil {
		return req, err
	}

	var calibration *geometry.Point
	if err := u.jsonField("calibration_point", &calibration); err != nil {
		return req, err
	}
	req.Calibration = calibration

	return req, nil
}
