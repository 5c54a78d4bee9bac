package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ai-reading-assistant/internal/service/capture"
	"ai-reading-assistant/internal/service/playback"
)

// maxBodyBytes bounds request bodies; summaries are for pages, not books.
const maxBodyBytes = 1 << 20

// Capture is the capture session surface exposed over HTTP.
type Capture interface {
	Start(ctx context.Context) error
	Stop()
	Clear()
	Snapshot() capture.Snapshot
	SnapshotTranscript() string
}

// Playback is the playback surface exposed over HTTP.
type Playback interface {
	Speak(ctx context.Context, req playback.Request) error
	Stop()
	Status() playback.Status
	Voices(ctx context.Context) ([]playback.Voice, error)
}

// Summarizer produces summaries on behalf of a named source.
type Summarizer interface {
	Summarize(source, text string) string
}

// Deps are the services behind the router. Websocket may be nil.
type Deps struct {
	Capture     Capture
	Playback    Playback
	Summarizer  Summarizer
	Websocket   http.Handler
	DefaultRate float64
	Ready       func() bool
}

type handlers struct {
	Deps
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Deps) http.Handler {
	h := &handlers{Deps: deps}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil && !deps.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/summarize", h.summarize)

		r.Route("/capture", func(r chi.Router) {
			r.Get("/", h.captureState)
			r.Get("/transcript", h.captureTranscript)
			r.Post("/start", h.captureStart)
			r.Post("/stop", h.captureStop)
			r.Post("/clear", h.captureClear)
		})

		r.Route("/playback", func(r chi.Router) {
			r.Get("/", h.playbackState)
			r.Get("/voices", h.playbackVoices)
			r.Post("/speak", h.playbackSpeak)
			r.Post("/stop", h.playbackStop)
		})

		if deps.Websocket != nil {
			r.Handle("/ws", deps.Websocket)
		}
	})

	return r
}

type captureView struct {
	SessionID         string `json:"sessionId,omitempty"`
	State             string `json:"state"`
	IsActive          bool   `json:"isActive"`
	ShouldAutoRestart bool   `json:"shouldAutoRestart"`
	RestartPending    bool   `json:"restartPending"`
	Transcript        string `json:"transcript"`
	PendingPartial    string `json:"pendingPartial"`
	LastFault         string `json:"lastFault,omitempty"`
	Notice            string `json:"notice,omitempty"`
}

func newCaptureView(s capture.Snapshot) captureView {
	v := captureView{
		SessionID:         s.SessionId,
		State:             s.State.String(),
		IsActive:          s.IsActive,
		ShouldAutoRestart: s.ShouldAutoRestart,
		RestartPending:    s.RestartPending,
		Transcript:        s.CommittedTranscript,
		PendingPartial:    s.PendingPartial,
		Notice:            s.Notice,
	}
	if s.LastFault != capture.FaultNone {
		v.LastFault = s.LastFault.String()
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

func (h *handlers) summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: h.Summarizer.Summarize("http", req.Text)})
}

func (h *handlers) captureState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newCaptureView(h.Capture.Snapshot()))
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
}

func (h *handlers) captureTranscript(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, transcriptResponse{Transcript: h.Capture.SnapshotTranscript()})
}

func (h *handlers) captureStart(w http.ResponseWriter, r *http.Request) {
	if err := h.Capture.Start(context.WithoutCancel(r.Context())); err != nil {
		switch {
		case errors.Is(err, capture.ErrEngineUnavailable):
			writeError(w, http.StatusServiceUnavailable, capture.MsgEngineUnavailable)
		case errors.Is(err, capture.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, capture.MsgPermissionDenied)
		case errors.Is(err, capture.ErrAlreadyListening):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, capture.MsgStartFailed)
		}
		return
	}
	writeJSON(w, http.StatusOK, newCaptureView(h.Capture.Snapshot()))
}

func (h *handlers) captureStop(w http.ResponseWriter, _ *http.Request) {
	h.Capture.Stop()
	writeJSON(w, http.StatusOK, newCaptureView(h.Capture.Snapshot()))
}

func (h *handlers) captureClear(w http.ResponseWriter, _ *http.Request) {
	h.Capture.Clear()
	writeJSON(w, http.StatusOK, newCaptureView(h.Capture.Snapshot()))
}

func (h *handlers) playbackState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Playback.Status())
}

type voicesResponse struct {
	Voices    []playback.Voice `json:"voices"`
	Preferred *playback.Voice  `json:"preferred,omitempty"`
}

func (h *handlers) playbackVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.Playback.Voices(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Listing voices failed")
		writeError(w, http.StatusBadGateway, "voices unavailable")
		return
	}
	resp := voicesResponse{Voices: voices}
	if v, ok := playback.PreferredVoice(voices); ok {
		resp.Preferred = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

type speakRequest struct {
	Text  string   `json:"text"`
	Rate  *float64 `json:"rate,omitempty"`
	Voice string   `json:"voice,omitempty"`
}

func (h *handlers) playbackSpeak(w http.ResponseWriter, r *http.Request) {
	var body speakRequest
	if !decode(w, r, &body) {
		return
	}
	req := playback.Request{Text: body.Text, Rate: h.DefaultRate, Voice: body.Voice}
	if body.Rate != nil {
		req.Rate = *body.Rate
	}

	if err := h.Playback.Speak(context.WithoutCancel(r.Context()), req); err != nil {
		if errors.Is(err, playback.ErrEngineUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, playback.MsgPlaybackFailed)
		return
	}
	writeJSON(w, http.StatusAccepted, h.Playback.Status())
}

func (h *handlers) playbackStop(w http.ResponseWriter, _ *http.Request) {
	h.Playback.Stop()
	writeJSON(w, http.StatusOK, h.Playback.Status())
}
