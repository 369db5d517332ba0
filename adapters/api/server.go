package api

import (
	"encoding/json"
	"log"
	"net/http"

	"gomulm/app"
	"gomulm/domain/contrast"
	"gomulm/domain/ols"
	"gomulm/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gonum.org/v1/gonum/mat"
)

// maxBodyBytes bounds a request's matrices
const maxBodyBytes = 64 << 20

// Server exposes fits and contrast tests over HTTP
type Server struct {
	router   *chi.Mux
	analysis *app.AnalysisService
	opts     contrast.Options
}

// AnalysisBody is the JSON request of every endpoint. Matrices are row-major.
type AnalysisBody struct {
	X         [][]float64 `json:"x"`
	Y         [][]float64 `json:"y"`
	Contrasts [][]float64 `json:"contrasts,omitempty"`
	FTest     bool        `json:"ftest,omitempty"`
	MaxT      bool        `json:"maxt,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer creates the HTTP handler
func NewServer(analysis *app.AnalysisService, opts contrast.Options) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		analysis: analysis,
		opts:     opts,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/fit", s.handleFit)
		r.Post("/ttest", s.handleTTest)
		r.Post("/ftest", s.handleFTest)
		r.Post("/analyses", s.handleAnalysis)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	_, x, y, _, ok := s.decode(w, r)
	if !ok {
		return
	}

	model, err := ols.Fit(x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	n, p, q := model.Dims()
	writeJSON(w, http.StatusOK, map[string]any{
		"n":            n,
		"p":            p,
		"q":            q,
		"rank":         model.Design().Rank(),
		"df":           model.DF(),
		"coefficients": rowsOf(model.Coefficients()),
		"rss":          model.RSS(),
	})
}

func (s *Server) handleTTest(w http.ResponseWriter, r *http.Request) {
	_, x, y, c, ok := s.decode(w, r)
	if !ok {
		return
	}
	model, err := ols.Fit(x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := contrast.TTestBatch(model, c, s.opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFTest(w http.ResponseWriter, r *http.Request) {
	_, x, y, c, ok := s.decode(w, r)
	if !ok {
		return
	}
	model, err := ols.Fit(x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := contrast.FTest(model, c, s.opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	body, x, y, c, ok := s.decode(w, r)
	if !ok {
		return
	}
	report, err := s.analysis.Run(r.Context(), app.AnalysisRequest{
		X:         x,
		Y:         y,
		Contrasts: c,
		FTest:     body.FTest,
		MaxT:      body.MaxT,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// decode reads the body and converts it to matrices; contrasts default to
// identity. It writes the error response itself and reports whether to go on.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*AnalysisBody, *mat.Dense, *mat.Dense, *mat.Dense, bool) {
	var body AnalysisBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, errors.InvalidInput("malformed JSON body: "+err.Error()))
		return nil, nil, nil, nil, false
	}

	x, err := toDense("x", body.X)
	if err != nil {
		writeError(w, err)
		return nil, nil, nil, nil, false
	}
	y, err := toDense("y", body.Y)
	if err != nil {
		writeError(w, err)
		return nil, nil, nil, nil, false
	}

	var c *mat.Dense
	if len(body.Contrasts) == 0 {
		_, p := x.Dims()
		c = contrast.IdentityContrasts(p)
	} else if c, err = contrast.NewMatrix(body.Contrasts); err != nil {
		writeError(w, err)
		return nil, nil, nil, nil, false
	}
	return &body, x, y, c, true
}

func toDense(name string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.InvalidInput(name + " is empty")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.DimensionError("%s row %d has %d values, expected %d", name, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func rowsOf(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}

// statusFor maps error codes to HTTP statuses
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeDimension, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	case errors.CodeDegenerateContrast, errors.CodeInsufficientPermutations, errors.CodeNotFitted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] internal error: %v", err)
	}
	writeJSON(w, status, errorBody{Code: errors.GetCode(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}
