package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuesight/cuesight-app/billiard"
	"github.com/cuesight/cuesight-app/geometry"
	"github.com/cuesight/cuesight-app/pipeline"
	"github.com/cuesight/cuesight-app/store"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

type fakeDetector struct {
	name   string
	result pipeline.Result
	err    error
	got    pipeline.Request
}

func (f *fakeDetector) Name() string { return f.name }

func (f *fakeDetector) Detect(ctx context.Context, img gocv.Mat, req pipeline.Request) (pipeline.Result, error) {
	f.got = req
	return f.result, f.err
}

func newTestServer(t *testing.T, d pipeline.Detector) (*Server, http.Handler) {
	t.Helper()

	st, err := store.OpenBadgerPath("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &Server{
		Store:             st,
		Detector:          d,
		Matcher:           billiard.ColorMatcher{Aliases: map[string][]string{"white": {"N0"}}},
		Logger:            logger,
		MaxUploadBytes:    1 << 20,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		StreamMaxWidth:    320,
		StreamMaxHeight:   240,
	}

	h, err := s.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	return s, h
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{G: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, filename string, file []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(file)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func sampleResult() pipeline.Result {
	cue := billiard.Ball{X: 20, Y: 20, R: 6, Class: "White", Confidence: 0.5}
	red := billiard.Ball{X: 40, Y: 20, R: 6, Class: "Red", Confidence: 0.4}
	return pipeline.Result{CueBall: &cue, OtherBalls: []billiard.Ball{red}, AllDetected: []billiard.Ball{cue, red}}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, &fakeDetector{name: "fake"})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}

	var body healthResponse
	decode(t, rec, &body)
	if body.Detector != "fake" {
		t.Errorf("detector: got %q, want fake", body.Detector)
	}
}

func TestDetect(t *testing.T) {
	det := &fakeDetector{name: "fake", result: sampleResult()}
	_, h := newTestServer(t, det)

	req := multipartRequest(t, "/detect", "table.PNG", pngBytes(t), map[string]string{
		"table_area":        `[{"x":0,"y":0},{"x":60,"y":0},{"x":60,"y":40},{"x":0,"y":40}]`,
		"calibration_point": `{"x":5,"y":5}`,
	})
	rec := serve(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	var body detectResponse
	decode(t, rec, &body)
	if len(body.Balls) != 2 || body.CueBall == nil || len(body.OtherBalls) != 1 {
		t.Errorf("got %+v", body)
	}

	if det.got.CueColor != defaultCueColor {
		t.Errorf("cue color: got %q, want default %q", det.got.CueColor, defaultCueColor)
	}
	if len(det.got.TableArea) != 4 || det.got.Calibration == nil || *det.got.Calibration != (geometry.Point{X: 5, Y: 5}) {
		t.Errorf("request hints not forwarded: %+v", det.got)
	}
}

func TestDetect_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		file     []byte
		fields   map[string]string
		err      error
		want     int
	}{
		{"missing file", "", nil, nil, nil, http.StatusBadRequest},
		{"extension", "table.gif", []byte("GIF89a"), nil, nil, http.StatusBadRequest},
		{"undecodable", "table.jpg", []byte("not an image"), nil, nil, http.StatusBadRequest},
		{"two point area", "table.png", nil, map[string]string{"table_area": `[{"x":1,"y":1},{"x":2,"y":2}]`}, nil, http.StatusBadRequest},
		{"malformed area", "table.png", nil, map[string]string{"table_area": `[{"x":`}, nil, http.StatusBadRequest},
		{"service", "table.png", nil, nil, pipeline.ErrDetectionService{errors.New("timeout")}, http.StatusBadGateway},
		{"unexpected", "table.png", nil, nil, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, &fakeDetector{name: "fake", err: tt.err})

			file := tt.file
			if file == nil && tt.filename != "" {
				file = pngBytes(t)
			}

			rec := serve(h, multipartRequest(t, "/detect", tt.filename, file, tt.fields))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}

			var body errorResponse
			decode(t, rec, &body)
			if body.Error == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestDetect_TooLarge(t *testing.T) {
	s, h := newTestServer(t, &fakeDetector{name: "fake"})
	s.MaxUploadBytes = 512

	rec := serve(h, multipartRequest(t, "/detect", "big.png", bytes.Repeat([]byte{1}, 4096), nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestCalculate(t *testing.T) {
	_, h := newTestServer(t, &fakeDetector{name: "fake"})

	body := `{
		"balls": [
			{"x": 500, "y": 500, "r": 18, "class": "ignore"},
			{"x": 0, "y": 0, "r": 0, "class": "N0"},
			{"x": 100, "y": 0, "r": 15, "class": "Red"},
			{"x": 200, "y": 0, "r": 15, "class": "Blue"}
		],
		"pockets": [{"x": 300, "y": 0}]
	}`
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CueBall  *billiard.Ball `json:"cue_ball"`
		BestShot *struct {
			TargetBall billiard.Ball  `json:"target_ball"`
			Angle      float64        `json:"angle"`
			Pocket     geometry.Point `json:"pocket"`
		} `json:"best_shot"`
	}
	decode(t, rec, &resp)

	if resp.CueBall == nil || resp.CueBall.R != billiard.DefaultRadius {
		t.Errorf("cue: got %+v, want N0 ball with default radius", resp.CueBall)
	}
	if resp.BestShot == nil || resp.BestShot.TargetBall.X != 100 || resp.BestShot.Angle != 0 {
		t.Errorf("best shot: got %+v", resp.BestShot)
	}
}

func TestCalculate_NoShot(t *testing.T) {
	_, h := newTestServer(t, &fakeDetector{name: "fake"})

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(`{"balls":[{"x":1,"y":1,"class":"White"}],"pockets":[]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"best_shot":null`) {
		t.Errorf("got %s, want a null best_shot", rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(`{"balls": [`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed json: got %d, want 422", rec.Code)
	}
}

func TestCalculateManual(t *testing.T) {
	_, h := newTestServer(t, &fakeDetector{name: "fake"})

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/calculate_manual", strings.NewReader(
		`{"white_ball":{"x":0,"y":0},"target_ball":{"x":100,"y":0},"pocket":{"x":300,"y":0}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		GhostBall struct {
			Center geometry.Point `json:"center"`
			Radius int            `json:"radius"`
		} `json:"ghost_ball"`
		ShotLines []json.RawMessage `json:"shot_lines"`
		Angle     float64           `json:"angle"`
	}
	decode(t, rec, &resp)

	if resp.GhostBall.Center != (geometry.Point{X: 64, Y: 0}) || resp.GhostBall.Radius != 18 {
		t.Errorf("ghost: got %+v", resp.GhostBall)
	}
	if len(resp.ShotLines) != 2 {
		t.Errorf("got %d shot lines, want 2", len(resp.ShotLines))
	}

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/calculate_manual", strings.NewReader(`{"white_ball":{"x":0,"y":0}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing points: got %d, want 400", rec.Code)
	}
}

func TestAnalyzeBestShot(t *testing.T) {
	s, h := newTestServer(t, &fakeDetector{name: "fake", result: sampleResult()})

	rec := serve(h, multipartRequest(t, "/analyze_best_shot", "t.jpg", pngBytes(t), map[string]string{
		"pockets": `[{"x":60,"y":20},{"x":0,"y":0}]`,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		WhiteBall *billiard.Ball `json:"white_ball"`
		BestShot  *struct {
			Pocket geometry.Point `json:"pocket"`
		} `json:"best_shot"`
	}
	decode(t, rec, &resp)
	if resp.WhiteBall == nil || resp.BestShot == nil || resp.BestShot.Pocket != (geometry.Point{X: 60, Y: 20}) {
		t.Errorf("got %+v", resp)
	}

	s.detectorManager = newDetectorManager(&fakeDetector{name: "fake"}, s.Logger)
	rec = serve(h, multipartRequest(t, "/analyze_best_shot", "t.jpg", pngBytes(t), map[string]string{"pockets": `[]`}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no cue ball: got %d, want 422", rec.Code)
	}
}

func TestAnalyze(t *testing.T) {
	_, h := newTestServer(t, &fakeDetector{name: "fake", result: sampleResult()})

	rec := serve(h, multipartRequest(t, "/analyze", "t.jpg", pngBytes(t), map[string]string{
		"data": `{"target_ball":{"x":40,"y":20},"pocket":{"x":60,"y":20}}`,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		GhostBall struct {
			Center geometry.Point `json:"center"`
			Radius int            `json:"radius"`
		} `json:"ghost_ball"`
	}
	decode(t, rec, &resp)

	// target radius falls back to the cue ball's 6px
	if resp.GhostBall.Radius != 6 || resp.GhostBall.Center != (geometry.Point{X: 28, Y: 20}) {
		t.Errorf("ghost: got %+v", resp.GhostBall)
	}

	rec = serve(h, multipartRequest(t, "/analyze", "t.jpg", pngBytes(t), nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing data: got %d, want 400", rec.Code)
	}
}

func TestProfiles(t *testing.T) {
	s, h := newTestServer(t, nil)

	rec := serve(h, httptest.NewRequest(http.MethodPut, "/profiles/dim", strings.NewReader(`{"gamma": 2.2}`)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put profile: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/profiles/dim", nil))
	var config pipeline.Config
	decode(t, rec, &config)
	if config.Gamma != 2.2 || config.DedupDistance != 20 {
		t.Errorf("profile: got gamma %v dedup %v, want 2.2 with defaults kept", config.Gamma, config.DedupDistance)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/profiles", nil))
	var names []string
	decode(t, rec, &names)
	if len(names) != 1 || names[0] != "dim" {
		t.Errorf("profiles: got %v", names)
	}

	rec = serve(h, httptest.NewRequest(http.MethodPut, "/profile", strings.NewReader(`"dim"`)))
	if rec.Code != http.StatusNoContent {
		t.Errorf("put default: got %d", rec.Code)
	}
	rec = serve(h, httptest.NewRequest(http.MethodGet, "/profile", nil))
	var def string
	decode(t, rec, &def)
	if def != "dim" {
		t.Errorf("default: got %q", def)
	}

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/rpc/updateProfile?name=dim", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", rec.Code, rec.Body.String())
	}
	classical, ok := s.detectorManager.Detector().(*pipeline.Classical)
	if !ok || classical.Config.Gamma != 2.2 {
		t.Errorf("active detector not retuned: %+v", s.detectorManager.Detector())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/profiles/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing profile: got %d, want 404", rec.Code)
	}
}

func TestProfiles_RejectInvalidTuning(t *testing.T) {
	s, h := newTestServer(t, nil)

	for _, body := range []string{`{"blurKernel": 4}`, `{"claheTileSize": 0}`, `{"houghTiers": []}`, `{"minRadius": 90}`} {
		rec := serve(h, httptest.NewRequest(http.MethodPut, "/profiles/bad", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("put %s: got %d, want 400", body, rec.Code)
		}
	}

	if _, err := s.Store.Profile("bad"); !errors.Is(err, store.ErrProfileNotFound) {
		t.Errorf("invalid profile was stored: %v", err)
	}

	broken := pipeline.DefaultConfig()
	broken.BlurKernel = 4
	if err := s.Store.PutProfile("broken", broken); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/rpc/updateProfile?name=broken", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("update: got %d, want 400", rec.Code)
	}
	if c := s.detectorManager.Detector().(*pipeline.Classical); c.Config.BlurKernel != 9 {
		t.Errorf("live detector retuned to blur kernel %d", c.Config.BlurKernel)
	}
}

func TestUpdateProfile_RemoteDetector(t *testing.T) {
	s, h := newTestServer(t, &fakeDetector{name: "remote"})
	if err := s.Store.PutProfile("dim", pipeline.DefaultConfig()); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/rpc/updateProfile?name=dim", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("got %d, want 409", rec.Code)
	}
}

func TestInit_AppliesDefaultProfile(t *testing.T) {
	st, err := store.OpenBadgerPath("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	tuned := pipeline.DefaultConfig()
	tuned.DedupDistance = 31
	st.PutProfile("tuned", tuned)
	st.PutDefaultProfile("tuned")

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &Server{Store: st, Logger: logger}
	if _, err := s.Handler(); err != nil {
		t.Fatalf("Handler: %v", err)
	}

	classical, ok := s.detectorManager.Detector().(*pipeline.Classical)
	if !ok || classical.Config.DedupDistance != 31 {
		t.Errorf("default profile not applied: %+v", s.detectorManager.Detector())
	}
}
