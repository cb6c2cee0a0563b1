package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/overlay"
	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/cuesight/cuesight-app/shot"
)

var errNoCueBall = errors.New("cue ball not found")

type healthResponse struct {
	Message  string `json:"message"`
	Detector string `json:"detector"`
}

func (s *Server) health(res http.ResponseWriter, req *http.Request) {
	respond(res, healthResponse{
		Message:  "billiards shot assistant is running",
		Detector: s.detectorManager.Detector().Name(),
	}, http.StatusOK)
}

type detectResponse struct {
	Balls      []billiard.Ball `json:"balls"`
	CueBall    *billiard.Ball  `json:"cue_ball"`
	OtherBalls []billiard.Ball `json:"other_balls"`
}

// runDetection reads an upload and runs the active detector over it. On
// failure the error response is already written and the bool is false. The
// returned upload must be closed.
func (s *Server) runDetection(res http.ResponseWriter, req *http.Request) (*upload, pipeline.Request, pipeline.Result, bool) {
	up, err := s.readUpload(res, req)
	if err != nil {
		respond(res, err, statusFor(err))
		return nil, pipeline.Request{}, pipeline.Result{}, false
	}

	detectReq, err := up.detectRequest()
	if err != nil {
		up.Close()
		respond(res, err, statusFor(err))
		return nil, detectReq, pipeline.Result{}, false
	}

	detector := s.detectorManager.Detector()
	result, err := detector.Detect(req.Context(), up.Image, detectReq)
	if err != nil {
		up.Close()
		loggerFrom(req.Context(), s.Logger).WithField("detector", detector.Name()).Errorf("detection failed: %s", err)
		respond(res, err, statusFor(err))
		return nil, detectReq, result, false
	}

	loggerFrom(req.Context(), s.Logger).Infof("detected %s", result)
	return up, detectReq, result, true
}

func (s *Server) detect(res http.ResponseWriter, req *http.Request) {
	up, detectReq, result, ok := s.runDetection(res, req)
	if !ok {
		return
	}
	defer up.Close()

	s.publish(req, up, overlay.Scene{
		TableArea: detectReq.TableArea,
		Balls:     result.AllDetected,
		CueBall:   result.CueBall,
	})

	respond(res, detectResponse{
		Balls:      nonNil(result.AllDetected),
		CueBall:    result.CueBall,
		OtherBalls: nonNil(result.OtherBalls),
	}, http.StatusOK)
}

type calculateRequest struct {
	Balls     []billiard.Ball  `json:"balls"`
	Pockets   []geometry.Point `json:"pockets"`
	TableArea []geometry.Point `json:"table_area"`
	CueColor  string           `json:"cue_ball_color"`
}

type calculateResponse struct {
	CueBall  *billiard.Ball `json:"cue_ball"`
	BestShot *shot.BestShot `json:"best_shot"`
}

// calculate searches for a best shot over balls a user already reviewed.
func (s *Server) calculate(res http.ResponseWriter, req *http.Request) {
	var body calculateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if err := geometry.ValidateTableArea(body.TableArea); err != nil {
		respond(res, err, statusFor(err))
		return
	}

	cueColor := strings.TrimSpace(body.CueColor)
	if cueColor == "" {
		cueColor = defaultCueColor
	}

	cue, others := billiard.Partition(body.Balls, cueColor, s.Matcher)
	best := shot.FindBestShot(cue, others, body.Pockets, body.TableArea)

	respond(res, calculateResponse{CueBall: cue, BestShot: best}, http.StatusOK)
}

type manualRequest struct {
	WhiteBall  *geometry.Point `json:"white_ball"`
	TargetBall *geometry.Point `json:"target_ball"`
	Pocket     *geometry.Point `json:"pocket"`
}

func (s *Server) calculateManual(res http.ResponseWriter, req *http.Request) {
	var body manualRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respond(res, err, http.StatusUnprocessableEntity)
		return
	}

	if body.WhiteBall == nil || body.TargetBall == nil || body.Pocket == nil {
		respond(res, badRequest("white_ball, target_ball and pocket are required"), http.StatusBadRequest)
		return
	}

	respond(res, shot.Manual(*body.WhiteBall, *body.TargetBall, *body.Pocket), http.StatusOK)
}

type bestShotResponse struct {
	WhiteBall  *billiard.Ball  `json:"white_ball"`
	OtherBalls []billiard.Ball `json:"other_balls"`
	BestShot   *shot.BestShot  `json:"best_shot"`
}

func (s *Server) analyzeBestShot(res http.ResponseWriter, req *http.Request) {
	up, detectReq, result, ok := s.runDetection(res, req)
	if !ok {
		return
	}
	defer up.Close()

	var pockets []geometry.Point
	if err := up.jsonField("pockets", &pockets); err != nil {
		respond(res, err, statusFor(err))
		return
	}

	if result.CueBall == nil {
		respond(res, errNoCueBall, http.StatusUnprocessableEntity)
		return
	}

	best := shot.FindBestShot(result.CueBall, result.OtherBalls, pockets, detectReq.TableArea)

	scene := overlay.Scene{
		TableArea: detectReq.TableArea,
		Pockets:   pockets,
		Balls:     result.OtherBalls,
		CueBall:   result.CueBall,
	}
	if best != nil {
		scene.ShotLines = best.ShotLines[:]
		scene.GhostBall = &best.GhostBall
	}
	s.publish(req, up, scene)

	respond(res, bestShotResponse{
		WhiteBall:  result.CueBall,
		OtherBalls: nonNil(result.OtherBalls),
		BestShot:   best,
	}, http.StatusOK)
}

type analyzeData struct {
	TargetBall *billiard.Ball  `json:"target_ball"`
	Pocket     *geometry.Point `json:"pocket"`
}

type analyzeResponse struct {
	WhiteBall  *billiard.Ball  `json:"white_ball"`
	OtherBalls []billiard.Ball `json:"other_balls"`
	ShotLines  [2]shot.Line    `json:"shot_lines"`
	GhostBall  shot.GhostBall  `json:"ghost_ball"`
}

// analyze aims at a target and pocket the caller picked on the image.
func (s *Server) analyze(res http.ResponseWriter, req *http.Request) {
	up, detectReq, result, ok := s.runDetection(res, req)
	if !ok {
		return
	}
	defer up.Close()

	var data analyzeData
	if err := up.jsonField("data", &data); err != nil {
		respond(res, err, statusFor(err))
		return
	}
	if data.TargetBall == nil || data.Pocket == nil {
		respond(res, badRequest("data needs target_ball and pocket"), http.StatusBadRequest)
		return
	}

	if result.CueBall == nil {
		respond(res, errNoCueBall, http.StatusUnprocessableEntity)
		return
	}

	radius := data.TargetBall.R
	if radius <= 0 {
		radius = result.CueBall.Radius()
	}
	lines, ghost := shot.ComputeGhostBall(result.CueBall.Center(), data.TargetBall.Center(), *data.Pocket, radius)

	s.publish(req, up, overlay.Scene{
		TableArea: detectReq.TableArea,
		Pockets:   []geometry.Point{*data.Pocket},
		Balls:     result.OtherBalls,
		CueBall:   result.CueBall,
		ShotLines: lines[:],
		GhostBall: &ghost,
	})

	respond(res, analyzeResponse{
		WhiteBall:  result.CueBall,
		OtherBalls: nonNil(result.OtherBalls),
		ShotLines:  lines,
		GhostBall:  ghost,
	}, http.StatusOK)
}

// publish renders scene over the upload and pushes it to the stream. Render
// failures only cost the diagnostic frame.
func (s *Server) publish(req *http.Request, up *upload, scene overlay.Scene) {
	frame, err := overlay.Frame(up.Image, scene, s.StreamMaxWidth, s.StreamMaxHeight)
	if err != nil {
		loggerFrom(req.Context(), s.Logger).Warnf("unable to render overlay: %s", err)
		return
	}

	s.stream.UpdateJPEG(frame)
}

func nonNil(balls []billiard.Ball) []billiard.Ball {
	if balls == nil {
		return []billiard.Ball{}
	}
	return balls
}
