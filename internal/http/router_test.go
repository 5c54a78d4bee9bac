package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-reading-assistant/internal/service/capture"
	capturemock "ai-reading-assistant/internal/service/capture/mock"
	"ai-reading-assistant/internal/service/playback"
	playbackmock "ai-reading-assistant/internal/service/playback/mock"
	"ai-reading-assistant/internal/service/summarize"
)

func newTestRouter(engine capture.Engine) (http.Handler, *capture.Manager, *playback.Controller) {
	mgr := capture.NewManager(engine)
	ctl := playback.NewController(playbackmock.New())
	r := NewRouter(Deps{
		Capture:     mgr,
		Playback:    ctl,
		Summarizer:  summarize.NewService(nil),
		DefaultRate: 1.0,
	})
	return r, mgr, ctl
}

func slowEngine() *capturemock.Engine {
	return capturemock.New(capturemock.Config{Interval: time.Hour})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	r, _, _ := newTestRouter(slowEngine())

	if rec := do(t, r, http.MethodGet, "/v1/liveness", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected liveness response: %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, r, http.MethodGet, "/v1/readiness", ""); rec.Code != http.StatusOK {
		t.Errorf("expected readiness 200, got %d", rec.Code)
	}

	notReady := NewRouter(Deps{Ready: func() bool { return false }})
	if rec := do(t, notReady, http.MethodGet, "/v1/readiness", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected readiness 503, got %d", rec.Code)
	}
}

func TestSummarize(t *testing.T) {
	r, _, _ := newTestRouter(slowEngine())

	tests := []struct {
		name     string
		body     string
		wantCode int
		want     string
	}{
		{"empty text", `{"text": ""}`, http.StatusOK, summarize.NothingToSummarize},
		{"short text", `{"text": "First sentence here. Second sentence here."}`, http.StatusOK, "First sentence here. Second sentence here."},
		{"bad json", `{"text":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, "/v1/summarize", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp summarizeResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Summary != tt.want {
				t.Errorf("expected %q, got %q", tt.want, resp.Summary)
			}
		})
	}
}

func TestCaptureLifecycle(t *testing.T) {
	r, mgr, _ := newTestRouter(slowEngine())

	rec := do(t, r, http.MethodPost, "/v1/capture/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected start 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view captureView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !view.IsActive || view.State != "LISTENING" || view.SessionID == "" {
		t.Errorf("unexpected state after start: %+v", view)
	}

	// Request context is cancelled once the handler returns; the session must survive it.
	if !mgr.IsActive() {
		t.Error("expected session to outlive the request")
	}

	rec = do(t, r, http.MethodPost, "/v1/capture/start", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected repeated start 409, got %d", rec.Code)
	}
	if !mgr.IsActive() {
		t.Error("repeated start deactivated the running session")
	}

	mgr.OnEvent(capture.Final("kept text"))
	rec = do(t, r, http.MethodGet, "/v1/capture/transcript", "")
	var tr transcriptResponse
	json.NewDecoder(rec.Body).Decode(&tr)
	if tr.Transcript != "kept text " {
		t.Errorf("unexpected transcript %q", tr.Transcript)
	}

	rec = do(t, r, http.MethodPost, "/v1/capture/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected stop 200, got %d", rec.Code)
	}
	view = captureView{}
	json.NewDecoder(rec.Body).Decode(&view)
	if view.ShouldAutoRestart {
		t.Error("expected auto restart disabled after stop")
	}

	rec = do(t, r, http.MethodPost, "/v1/capture/clear", "")
	view = captureView{}
	json.NewDecoder(rec.Body).Decode(&view)
	if view.Transcript != "" || view.PendingPartial != "" {
		t.Errorf("expected cleared transcript, got %+v", view)
	}

	rec = do(t, r, http.MethodGet, "/v1/capture/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected state 200, got %d", rec.Code)
	}
}

func TestCaptureStart_NoEngine(t *testing.T) {
	r, _, _ := newTestRouter(nil)

	rec := do(t, r, http.MethodPost, "/v1/capture/start", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body errorBody
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != capture.MsgEngineUnavailable {
		t.Errorf("expected %q, got %q", capture.MsgEngineUnavailable, body.Error)
	}
}

func TestPlayback(t *testing.T) {
	r, _, ctl := newTestRouter(slowEngine())

	rec := do(t, r, http.MethodPost, "/v1/playback/speak", `{"text": "Read this page aloud please.", "rate": 9}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var st playback.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !st.IsSpeaking || st.RequestId == "" {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.Request.Rate != 9 {
		t.Errorf("expected requested rate kept on the request, got %v", st.Request.Rate)
	}

	rec = do(t, r, http.MethodGet, "/v1/playback/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/v1/playback/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ctl.IsSpeaking() {
		t.Error("expected playback stopped")
	}

	rec = do(t, r, http.MethodPost, "/v1/playback/speak", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}
}

func TestPlaybackVoices(t *testing.T) {
	r, _, _ := newTestRouter(slowEngine())

	rec := do(t, r, http.MethodGet, "/v1/playback/voices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp voicesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Voices) != 2 {
		t.Errorf("expected 2 voices, got %d", len(resp.Voices))
	}
	if resp.Preferred == nil || resp.Preferred.Name != "mock-en" {
		t.Errorf("expected preferred mock-en, got %+v", resp.Preferred)
	}
}

func TestPlaybackSpeak_NoEngine(t *testing.T) {
	r := NewRouter(Deps{
		Playback:   playback.NewController(nil),
		Summarizer: summarize.NewService(nil),
	})

	rec := do(t, r, http.MethodPost, "/v1/playback/speak", `{"text": "hello"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
