package telegram

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"layeh.com/gopus"

	"github.com/hitromudr/tg-translator/internal/resilience"
	"github.com/hitromudr/tg-translator/internal/speech"
	"github.com/hitromudr/tg-translator/internal/store"
	"github.com/hitromudr/tg-translator/internal/translate"
	"github.com/hitromudr/tg-translator/pkg/provider/stt"
	sttmock "github.com/hitromudr/tg-translator/pkg/provider/stt/mock"
	translateiface "github.com/hitromudr/tg-translator/pkg/provider/translate"
	translatemock "github.com/hitromudr/tg-translator/pkg/provider/translate/mock"
	"github.com/hitromudr/tg-translator/pkg/provider/tts"
	ttsmock "github.com/hitromudr/tg-translator/pkg/provider/tts/mock"
)

// fakeAPI records every client call and assigns increasing message IDs to
// sent messages.
type fakeAPI struct {
	mu          sync.Mutex
	nextID      int
	sent        []*bot.SendMessageParams
	edits       []*bot.EditMessageTextParams
	deletes     []int
	answers     []*bot.AnswerCallbackQueryParams
	audioSent   int
	undeletable map[int]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 1000, undeletable: map[int]bool{}}
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, params)
	return &models.Message{
		ID:   f.nextID,
		Chat: models.Chat{ID: params.ChatID.(int64)},
	}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, params)
	return &models.Message{ID: params.MessageID, Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, params.MessageID)
	if f.undeletable[params.MessageID] {
		return false, nil
	}
	return true, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, params)
	return true, nil
}

func (f *fakeAPI) GetFile(_ context.Context, params *bot.GetFileParams) (*models.File, error) {
	return &models.File{FileID: params.FileID, FilePath: "voice/" + params.FileID}, nil
}

func (f *fakeAPI) FileDownloadLink(file *models.File) string {
	return "http://files.invalid/" + file.FilePath
}

func (f *fakeAPI) SendVoice(_ context.Context, params *bot.SendVoiceParams) (*models.Message, error) {
	return &models.Message{ID: 1, Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func (f *fakeAPI) SendAudio(_ context.Context, params *bot.SendAudioParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioSent++
	return &models.Message{ID: 2, Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func (f *fakeAPI) lastSentText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

func newTranslatorGroup(prov translateiface.Provider) *resilience.FallbackGroup[translateiface.Provider] {
	group := resilience.NewFallbackGroup[translateiface.Provider](resilience.FallbackConfig{})
	group.AddTier("primary", prov)
	return group
}

func newTestBot(t *testing.T, prov translateiface.Provider, sp *speech.Pipeline, opts ...Option) (*Bot, *fakeAPI, *store.MemStore) {
	t.Helper()
	fake := newFakeAPI()
	st := store.NewMemStore()
	translator := translate.NewPipeline(st, newTranslatorGroup(prov))
	b := newBot(fake, st, translator, sp, opts...)
	return b, fake, st
}

// roundTripperFunc lets a test serve voice-note downloads without a network.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// voiceNote builds a playable OGG/Opus stream: OpusHead, OpusTags, and a few
// frames of encoded silence at 48 kHz mono.
func voiceNote(t *testing.T, frames int) []byte {
	t.Helper()

	page := func(packets ...[]byte) []byte {
		header := make([]byte, 27)
		copy(header, "OggS")
		header[26] = byte(len(packets))
		out := header
		for _, p := range packets {
			out = append(out, byte(len(p)))
		}
		for _, p := range packets {
			out = append(out, p...)
		}
		return out
	}

	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = 1 // channels
	binary.LittleEndian.PutUint32(head[12:16], 48000)

	tags := make([]byte, 16)
	copy(tags, "OpusTags")

	enc, err := gopus.NewEncoder(48000, 1, gopus.Voip)
	if err != nil {
		t.Fatalf("create opus encoder: %v", err)
	}

	note := append(page(head), page(tags)...)
	silence := make([]int16, 960) // one 20 ms frame
	for range frames {
		pkt, err := enc.Encode(silence, 960, 250)
		if err != nil {
			t.Fatalf("opus encode: %v", err)
		}
		note = append(note, page(pkt)...)
	}
	return note
}

func setMode(t *testing.T, st *store.MemStore, chatID int64, mode store.Mode) {
	t.Helper()
	settings := store.DefaultSettings(chatID)
	settings.Mode = mode
	if err := st.SetSettings(context.Background(), settings); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}
}

func textMessage(chatID int64, id int, text string) *models.Message {
	return &models.Message{ID: id, Chat: models.Chat{ID: chatID}, Text: text}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		cmd      string
		args     string
		expectOK bool
	}{
		{"/start", "/start", "", true},
		{"/clean 25", "/clean", "25", true},
		{"/dict@translbot add \"Ян\" \"Ian\"", "/dict", `add "Ян" "Ian"`, true},
		{"/LANG set ru", "/lang", "set ru", true},
		{"hello there", "", "", false},
	}
	for _, tc := range tests {
		cmd, args, ok := parseCommand(tc.in)
		if ok != tc.expectOK || cmd != tc.cmd || args != tc.args {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.in, cmd, args, ok, tc.cmd, tc.args, tc.expectOK)
		}
	}
}

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`"Новый год" "New Year"`, []string{"Новый год", "New Year"}},
		{`Ян Ian`, []string{"Ян", "Ian"}},
		{`"Ян" Ian`, []string{"Ян", "Ian"}},
		{`  spaced   out  `, []string{"spaced", "out"}},
		{``, nil},
	}
	for _, tc := range tests {
		got := splitQuoted(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("splitQuoted(%q) = %q, want %q", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitQuoted(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestHandleText_OffModeIgnores(t *testing.T) {
	prov := &translatemock.Provider{}
	b, fake, st := newTestBot(t, prov, nil)
	setMode(t, st, 7, store.ModeOff)

	b.handleText(context.Background(), textMessage(7, 1, "привет"))

	if len(prov.Calls()) != 0 {
		t.Fatalf("provider called %d times in off mode", len(prov.Calls()))
	}
	if len(fake.sent) != 0 {
		t.Fatalf("bot sent %d messages in off mode", len(fake.sent))
	}
}

func TestHandleText_AutoModeTranslatesAndReplies(t *testing.T) {
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "hello", nil
		},
	}
	b, fake, st := newTestBot(t, prov, nil)
	setMode(t, st, 7, store.ModeAuto)

	b.handleText(context.Background(), textMessage(7, 1, "привет"))

	if got := len(prov.Calls()); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}
	if fake.lastSentText() != "hello" {
		t.Fatalf("sent text = %q, want %q", fake.lastSentText(), "hello")
	}
}

func TestHandleText_InteractiveDefersWork(t *testing.T) {
	prov := &translatemock.Provider{}
	b, fake, st := newTestBot(t, prov, nil)
	setMode(t, st, 7, store.ModeInteractive)

	b.handleText(context.Background(), textMessage(7, 1, "привет"))

	if got := len(prov.Calls()); got != 0 {
		t.Fatalf("provider calls = %d, want 0 before the button is pressed", got)
	}
	if fake.lastSentText() != textPlaceholder {
		t.Fatalf("placeholder text = %q", fake.lastSentText())
	}
	if len(fake.edits) != 1 || fake.edits[0].ReplyMarkup == nil {
		t.Fatalf("expected one edit attaching the button, got %+v", fake.edits)
	}

	// The payload must already be stored under the placeholder's message ID.
	placeholderID := fake.edits[0].MessageID
	payload, err := st.TakeOnce(context.Background(), 7, placeholderID)
	if err != nil {
		t.Fatalf("TakeOnce: %v", err)
	}
	p, err := decodePayload(payload)
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if p.Kind != payloadTranslate || p.Text != "привет" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestHandleVoice_InteractiveDefersTranslation(t *testing.T) {
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "hello everyone", nil
		},
	}
	sttProv := &sttmock.Provider{Text: "привет всем"}
	sttG := resilience.NewFallbackGroup[stt.Provider](resilience.FallbackConfig{})
	sttG.AddTier("cloud", sttProv)
	sp := speech.NewPipeline(sttG, nil)

	note := voiceNote(t, 3)
	var sentBeforeDownload int
	var fake *fakeAPI
	client := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		fake.mu.Lock()
		sentBeforeDownload = len(fake.sent)
		fake.mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(note)),
			Request:    req,
		}, nil
	})}

	b, f, st := newTestBot(t, prov, sp, WithHTTPClient(client))
	fake = f
	setMode(t, st, 7, store.ModeInteractive)

	voice := &models.Message{ID: 1, Chat: models.Chat{ID: 7}, Voice: &models.Voice{FileID: "vf1"}}
	b.handleVoice(context.Background(), voice)

	// The placeholder must already be on screen when the download starts.
	if sentBeforeDownload != 1 {
		t.Fatalf("messages sent before download = %d, want 1", sentBeforeDownload)
	}
	if len(fake.sent) != 1 || fake.sent[0].Text != voicePlaceholder {
		t.Fatalf("placeholder = %+v", fake.sent)
	}
	if sttProv.Calls() != 1 {
		t.Fatalf("stt calls = %d, want 1", sttProv.Calls())
	}

	// The placeholder is upgraded to the transcript with a translate button,
	// without translating yet.
	if len(fake.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(fake.edits))
	}
	edit := fake.edits[0]
	if edit.Text != voicePlaceholder+" привет всем" || edit.ReplyMarkup == nil {
		t.Fatalf("transcript edit = %+v", edit)
	}
	if got := len(prov.Calls()); got != 0 {
		t.Fatalf("provider calls = %d, want 0 before the button is pressed", got)
	}

	press := &models.CallbackQuery{
		ID:   "cb-voice",
		Data: callbackTranslate,
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: edit.MessageID, Chat: models.Chat{ID: 7}},
		},
	}

	b.handleCallback(context.Background(), press)
	if got := len(prov.Calls()); got != 1 {
		t.Fatalf("provider calls after first press = %d, want 1", got)
	}
	last := fake.edits[len(fake.edits)-1]
	if last.MessageID != edit.MessageID || last.Text != "hello everyone" {
		t.Fatalf("transcript not rewritten: %+v", last)
	}

	// The cached transcript is consumed by the first press.
	b.handleCallback(context.Background(), press)
	if got := len(prov.Calls()); got != 1 {
		t.Fatalf("provider calls after second press = %d, want still 1", got)
	}
	if lastAnswer := fake.answers[len(fake.answers)-1]; lastAnswer.Text != expiredNotice {
		t.Fatalf("second press answered %q, want %q", lastAnswer.Text, expiredNotice)
	}
}

func TestCallbackTranslate_TakeOnce(t *testing.T) {
	prov := &translatemock.Provider{
		TranslateFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "hello", nil
		},
	}
	b, fake, st := newTestBot(t, prov, nil)
	setMode(t, st, 7, store.ModeInteractive)

	b.handleText(context.Background(), textMessage(7, 1, "привет"))
	placeholderID := fake.edits[0].MessageID

	press := &models.CallbackQuery{
		ID:   "cb1",
		Data: callbackTranslate,
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: placeholderID, Chat: models.Chat{ID: 7}},
		},
	}

	b.handleCallback(context.Background(), press)
	if got := len(prov.Calls()); got != 1 {
		t.Fatalf("provider calls after first press = %d, want 1", got)
	}
	last := fake.edits[len(fake.edits)-1]
	if last.MessageID != placeholderID || last.Text != "hello" {
		t.Fatalf("placeholder not rewritten: %+v", last)
	}

	// Second press finds the payload consumed.
	b.handleCallback(context.Background(), press)
	if got := len(prov.Calls()); got != 1 {
		t.Fatalf("provider calls after second press = %d, want still 1", got)
	}
	lastAnswer := fake.answers[len(fake.answers)-1]
	if lastAnswer.Text != expiredNotice {
		t.Fatalf("second press answered %q, want %q", lastAnswer.Text, expiredNotice)
	}
}

func TestCallbackSpeak_SendsAudio(t *testing.T) {
	ttsProv := &ttsmock.Provider{Result: tts.Result{Data: []byte("RIFFdata"), Format: tts.FormatWAV}}
	ttsGroup := resilience.NewFallbackGroup[tts.Provider](resilience.FallbackConfig{})
	ttsGroup.AddTier("silero", ttsProv)
	sp := speech.NewPipeline(nil, ttsGroup)

	b, fake, st := newTestBot(t, &translatemock.Provider{}, sp)

	payload, err := pendingPayload{Kind: payloadSpeak, Text: "hello", Language: "en", Gender: "male"}.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := st.Put(context.Background(), 7, 42, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	b.handleCallback(context.Background(), &models.CallbackQuery{
		ID:   "cb2",
		Data: callbackSpeak,
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 42, Chat: models.Chat{ID: 7}},
		},
	})

	if ttsProv.Calls() != 1 {
		t.Fatalf("tts calls = %d, want 1", ttsProv.Calls())
	}
	if fake.audioSent != 1 {
		t.Fatalf("audio messages sent = %d, want 1", fake.audioSent)
	}
}

func TestCmdDictAdd_StoresInflectedForms(t *testing.T) {
	b, fake, st := newTestBot(t, &translatemock.Provider{}, nil)

	b.handleCommand(context.Background(), textMessage(7, 1, ""), "/dict", `add "Ян" "Ian"`)

	entries, err := st.GetDictionary(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetDictionary: %v", err)
	}
	bySource := map[string]string{}
	for _, e := range entries {
		bySource[e.Source] = e.Target
	}
	for _, form := range []string{"ян", "яна", "яну", "яном", "яне"} {
		if bySource[form] != "Ian" {
			t.Errorf("form %q missing or wrong target: %q", form, bySource[form])
		}
	}
	if !strings.Contains(fake.lastSentText(), "Ian") {
		t.Fatalf("confirmation = %q", fake.lastSentText())
	}
}

func TestCmdDictExportImport_RoundTrip(t *testing.T) {
	b, fake, st := newTestBot(t, &translatemock.Provider{}, nil)
	ctx := context.Background()

	if err := st.UpsertEntry(ctx, 7, store.DictionaryEntry{Source: "апдейт", Target: "update"}); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	b.handleCommand(ctx, textMessage(7, 1, ""), "/dict", "export")

	reply := fake.lastSentText()
	fields := strings.Fields(reply)
	var code string
	for i, f := range fields {
		if strings.HasPrefix(f, "code:") && i+1 < len(fields) {
			code = strings.TrimSuffix(fields[i+1], ".")
			break
		}
	}
	if code == "" {
		t.Fatalf("no share code in reply %q", reply)
	}

	b.handleCommand(ctx, textMessage(8, 1, ""), "/dict", "import "+code)
	entries, err := st.GetDictionary(ctx, 8)
	if err != nil {
		t.Fatalf("GetDictionary: %v", err)
	}
	if len(entries) != 1 || entries[0].Target != "update" {
		t.Fatalf("imported entries = %+v", entries)
	}

	// Codes are single use.
	b.handleCommand(ctx, textMessage(9, 1, ""), "/dict", "import "+code)
	if got, _ := st.GetDictionary(ctx, 9); len(got) != 0 {
		t.Fatalf("second import succeeded: %+v", got)
	}
}

func TestSetMode_PersistsAndConfirms(t *testing.T) {
	b, fake, st := newTestBot(t, &translatemock.Provider{}, nil)
	ctx := context.Background()

	b.handleCommand(ctx, textMessage(7, 1, ""), "/mute", "")
	settings, err := st.GetSettings(ctx, 7)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.Mode != store.ModeInteractive {
		t.Fatalf("mode = %q, want interactive", settings.Mode)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("confirmation messages = %d, want 1", len(fake.sent))
	}
}

func TestCmdLangSet_RejectsUnknownLanguage(t *testing.T) {
	b, fake, st := newTestBot(t, &translatemock.Provider{}, nil)
	ctx := context.Background()

	b.handleCommand(ctx, textMessage(7, 1, ""), "/lang", "set klingon")

	settings, err := st.GetSettings(ctx, 7)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.Primary != "ru" || settings.Secondary != "en" {
		t.Fatalf("settings changed: %+v", settings)
	}
	if !strings.Contains(fake.lastSentText(), "Unknown language") {
		t.Fatalf("reply = %q", fake.lastSentText())
	}
}

func TestCmdLangSet_AliasNormalized(t *testing.T) {
	b, _, st := newTestBot(t, &translatemock.Provider{}, nil)
	ctx := context.Background()

	b.handleCommand(ctx, textMessage(7, 1, ""), "/lang", "set ua en")

	settings, err := st.GetSettings(ctx, 7)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.Primary != "uk" {
		t.Fatalf("primary = %q, want uk", settings.Primary)
	}
}
