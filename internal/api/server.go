// Package api serves the sidecar HTTP interface: health probes, a stateless
// translation endpoint, speech endpoints, and dictionary management for
// integrations that bypass Telegram.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitromudr/tg-translator/internal/health"
	"github.com/hitromudr/tg-translator/internal/lang"
	"github.com/hitromudr/tg-translator/internal/observe"
	"github.com/hitromudr/tg-translator/internal/speech"
	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/internal/translate"
	"github.com/hitromudr/tg-translator/pkg/provider/tts"
)

// maxUploadBytes caps audio uploads on /stt.
const maxUploadBytes = 32 << 20

// Server is the sidecar HTTP API.
type Server struct {
	store      store.Store
	translator *translate.Pipeline
	speech     *speech.Pipeline
	health     *health.Handler
	metrics    *observe.Metrics
	log        *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHealth sets the health handler, including its readiness checkers.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.health = h
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New builds the sidecar API over the given store and pipelines. speechPipe
// may be nil; the speech endpoints then answer 503.
func New(st store.Store, translator *translate.Pipeline, speechPipe *speech.Pipeline, opts ...Option) *Server {
	s := &Server{
		store:      st,
		translator: translator,
		speech:     speechPipe,
		health:     health.New(),
		metrics:    observe.DefaultMetrics(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.HandleFunc("GET /health", s.health.Healthz)
	mux.HandleFunc("GET /languages", s.handleLanguages)
	mux.HandleFunc("GET /status/{chatID}", s.handleStatus)
	mux.HandleFunc("POST /translate", s.handleTranslate)
	mux.HandleFunc("POST /stt", s.handleSTT)
	mux.HandleFunc("POST /tts", s.handleTTS)
	mux.HandleFunc("POST /dict/add", s.handleDictAdd)
	mux.HandleFunc("POST /dict/remove", s.handleDictRemove)
	mux.HandleFunc("GET /dict/list", s.handleDictList)
	return observe.Middleware(s.metrics)(mux)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"languages": lang.List()})
}

type statusResponse struct {
	ChatID         int64  `json:"chat_id"`
	Primary        string `json:"primary"`
	Secondary      string `json:"secondary"`
	Mode           string `json:"mode"`
	VoiceGender    string `json:"voice_gender"`
	DictionarySize int    `json:"dictionary_size"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.PathValue("chatID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "chat id must be an integer")
		return
	}
	settings, err := s.store.GetSettings(r.Context(), chatID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load settings failed")
		return
	}
	entries, err := s.store.GetDictionary(r.Context(), chatID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load dictionary failed")
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		ChatID:         settings.ChatID,
		Primary:        settings.Primary,
		Secondary:      settings.Secondary,
		Mode:           string(settings.Mode),
		VoiceGender:    settings.VoiceGender,
		DictionarySize: len(entries),
	})
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Tier     string `json:"tier"`
	Fallback bool   `json:"fallback"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	source := req.Source
	if source == "" {
		source = "auto"
	} else if source = lang.Normalize(source); source == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source language %q", req.Source))
		return
	}
	target := lang.Normalize(req.Target)
	if target == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown target language %q", req.Target))
		return
	}

	res, err := s.translator.TranslatePair(r.Context(), req.Text, source, target)
	if err != nil {
		s.log.ErrorContext(r.Context(), "translate request failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "translation unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, translateResponse{
		Text:     res.Text,
		Source:   res.Source,
		Target:   res.Target,
		Tier:     res.Tier,
		Fallback: res.Fallback,
	})
}

type transcriptResponse struct {
	Text     string `json:"text"`
	Tier     string `json:"tier"`
	Fallback bool   `json:"fallback"`
}

func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		s.writeError(w, http.StatusServiceUnavailable, "speech providers not configured")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form with an audio field")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read upload failed")
		return
	}
	language := lang.Normalize(r.FormValue("language"))

	var transcript speech.Transcript
	switch {
	case bytes.HasPrefix(data, []byte("OggS")):
		transcript, err = s.speech.Transcribe(r.Context(), data, language)
	case bytes.HasPrefix(data, []byte("RIFF")):
		transcript, err = s.speech.TranscribeWAV(r.Context(), data, language)
	default:
		s.writeError(w, http.StatusUnsupportedMediaType, "audio must be OGG/Opus or WAV")
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "transcription request failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "transcription unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, transcriptResponse{
		Text:     transcript.Text,
		Tier:     transcript.Tier,
		Fallback: transcript.Fallback,
	})
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		s.writeError(w, http.StatusServiceUnavailable, "speech providers not configured")
		return
	}
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	res, err := s.speech.Synthesize(r.Context(), req.Text, lang.Normalize(req.Language), req.Gender)
	if err != nil {
		s.log.ErrorContext(r.Context(), "synthesis request failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "synthesis unavailable")
		return
	}

	contentType := "audio/wav"
	if res.Format == tts.FormatMP3 {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		s.log.Warn("write audio response", "error", err)
	}
}

type dictAddRequest struct {
	ChatID int64  `json:"chat_id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func (s *Server) handleDictAdd(w http.ResponseWriter, r *http.Request) {
	var req dictAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChatID == 0 || strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Target) == "" {
		s.writeError(w, http.StatusBadRequest, "chat_id, source and target are required")
		return
	}
	err := s.store.UpsertEntry(r.Context(), req.ChatID, store.DictionaryEntry{
		Source: req.Source,
		Target: req.Target,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "store entry failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type dictRemoveRequest struct {
	ChatID int64  `json:"chat_id"`
	Source string `json:"source"`
}

func (s *Server) handleDictRemove(w http.ResponseWriter, r *http.Request) {
	var req dictRemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.store.RemoveEntry(r.Context(), req.ChatID, req.Source)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no such entry")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "remove entry failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type dictEntry struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (s *Server) handleDictList(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "chat_id query parameter must be an integer")
		return
	}
	entries, err := s.store.GetDictionary(r.Context(), chatID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load dictionary failed")
		return
	}
	out := make([]dictEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dictEntry{Source: e.Source, Target: e.Target})
	}
	s.writeJSON(w, http.StatusOK, map[string][]dictEntry{"entries": out})
}
