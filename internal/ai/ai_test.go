package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/jobfill/internal/dom"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
)

const applicationForm = `<html><body>
<form id="application">
	<label for="fname">First Name</label>
	<input id="fname" name="first_name" required>
	<input name="last_name" placeholder="Last name">
	<input type="email" aria-label="Email address">
	<input type="hidden" name="csrf" value="x">
	<label>Country
		<select name="country"><option value="">Pick</option><option value="us">United States</option></select>
	</label>
	<input type="file" name="resume_upload">
	<input type="checkbox" name="terms">
	<div><span><input type="text"></span></div>
	<button type="submit">Submit application</button>
</form>
</body></html>`

func testProfile() *profile.Profile {
	return &profile.Profile{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		ResumePath: "/tmp/ada.pdf",
	}
}

func TestBuildFormMap(t *testing.T) {
	fm, err := BuildFormMap(dom.Snapshot{URL: "https://jobs.example.com/apply", Title: "Apply", HTML: applicationForm})
	require.NoError(t, err)

	assert.Equal(t, "https://jobs.example.com/apply", fm.URL)
	require.Len(t, fm.Fields, 7)
	require.Len(t, fm.Buttons, 1)

	first := fm.Fields[0]
	assert.Equal(t, protocol.Selector{Kind: protocol.SelectorID, Value: "fname"}, first.Selector)
	assert.Equal(t, "First Name", first.Label)
	assert.True(t, first.Required)
	assert.Equal(t, "text", first.Type)

	assert.Equal(t, protocol.Selector{Kind: protocol.SelectorName, Value: "last_name"}, fm.Fields[1].Selector)
	assert.Equal(t, protocol.Selector{Kind: protocol.SelectorAriaLabel, Value: "Email address"}, fm.Fields[2].Selector)
	assert.Equal(t, "email", fm.Fields[2].Type)

	country := fm.Fields[3]
	assert.Equal(t, "select", country.Type)
	assert.Equal(t, []string{"Pick", "United States"}, country.Options)
	assert.Contains(t, country.Label, "Country")

	assert.Equal(t, "file", fm.Fields[4].Type)
	assert.Equal(t, "checkbox", fm.Fields[5].Type)

	anon := fm.Fields[6]
	assert.Equal(t, protocol.SelectorCSS, anon.Selector.Kind)
	assert.Equal(t, "#application > div:nth-child(9) > span:nth-child(1) > input:nth-child(1)", anon.Selector.Value)

	assert.Equal(t, "Submit application", fm.Buttons[0].Text)
	assert.Equal(t, "submit", fm.Buttons[0].Type)
}

func TestBuildFormMap_LongButtonTextKeepsRunes(t *testing.T) {
	label := strings.Repeat("é", 49) + "€€€"
	html := `<form><button type="submit">` + label + `</button></form>`

	fm, err := BuildFormMap(dom.Snapshot{HTML: html})
	require.NoError(t, err)
	require.Len(t, fm.Buttons, 1)

	text := fm.Buttons[0].Text
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, maxButtonText, utf8.RuneCountInString(text))
	assert.Equal(t, strings.Repeat("é", 49)+"€", text)
}

func TestFallbackProvider(t *testing.T) {
	f := NewFallbackProvider(nil)
	doc, err := f.GenerateDocument(context.Background(), dom.Snapshot{URL: "https://jobs.example.com/apply", HTML: applicationForm}, testProfile())
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	require.Len(t, doc.Pages, 1)
	page := doc.Pages[0]
	assert.Equal(t, "Job Application Form", page.PageTitle)
	assert.False(t, page.Navigation.HasNext)

	byKind := map[protocol.Kind][]protocol.Instruction{}
	for _, ins := range page.Instructions {
		assert.False(t, ins.Required)
		assert.Equal(t, FallbackConfidence, ins.Confidence)
		byKind[ins.Kind()] = append(byKind[ins.Kind()], ins)
	}

	fills := byKind[protocol.KindFillField]
	require.Len(t, fills, 3)
	assert.Equal(t, protocol.FillField{Text: "Ada"}, fills[0].Action)
	assert.Equal(t, protocol.FillField{Text: "Lovelace"}, fills[1].Action)
	assert.Equal(t, protocol.FillField{Text: "ada@example.com"}, fills[2].Action)
	assert.Equal(t, "First Name", fills[0].FieldDescription)

	selects := byKind[protocol.KindSelectOption]
	require.Len(t, selects, 1)
	assert.Equal(t, protocol.SelectOption{Value: profile.DefaultCountry}, selects[0].Action)

	uploads := byKind[protocol.KindUploadFile]
	require.Len(t, uploads, 1)
	assert.Equal(t, protocol.UploadFile{Paths: []string{"/tmp/ada.pdf"}}, uploads[0].Action)

	assert.Empty(t, byKind[protocol.KindCheckCheckbox])
	assert.Equal(t, "Ada", doc.UserProfileUsed["first_name"])
}

func TestFallbackProvider_NilProfile(t *testing.T) {
	_, err := NewFallbackProvider(nil).GenerateDocument(context.Background(), dom.Snapshot{}, nil)
	assert.Error(t, err)
}

const modelDocument = `{
  "success": true,
  "pages": [{
    "page_number": 1,
    "page_url": "https://jobs.example.com/apply",
    "page_title": "Apply",
    "instructions": [
      {"type": "fill_field", "selector": {"type": "id", "value": "fname"}, "value": "Ada", "field_description": "First Name {x}", "confidence": 0.95, "required": true}
    ],
    "navigation": {"has_next": false},
    "validation": {"success_indicators": [], "error_indicators": []}
  }],
  "total_pages": 1,
  "estimated_completion_time": 5000
}`

func TestParseDocumentJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"bare", modelDocument},
		{"fenced", "```json\n" + modelDocument + "\n```"},
		{"prose", "Here is the document:\n" + modelDocument + "\nLet me know if you need changes."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parseDocumentJSON(tt.response)
			require.NoError(t, err)
			assert.Equal(t, int64(5000), doc.EstimatedCompletionTimeMs)
			assert.Equal(t, "First Name {x}", doc.Pages[0].Instructions[0].FieldDescription)
		})
	}
}

func TestParseDocumentJSON_Invalid(t *testing.T) {
	_, err := parseDocumentJSON("I could not find a form.")
	assert.ErrorContains(t, err, "no JSON object")

	_, err = parseDocumentJSON(`{"success": true, "pages": [`)
	assert.Error(t, err)

	_, err = parseDocumentJSON(`{"success": false, "pages": [], "total_pages": 0}`)
	assert.ErrorIs(t, err, protocol.ErrInvalidDocument)
}

func TestNewProvider(t *testing.T) {
	t.Setenv("JOBFILL_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewProvider("openai", Options{})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewProviderOrFallback("openai", Options{})
	require.NoError(t, err)
	assert.IsType(t, &FallbackProvider{}, p)

	_, err = NewProvider("llama", Options{})
	assert.ErrorContains(t, err, "unknown provider")
}

func TestOpenAIProvider_GenerateDocument(t *testing.T) {
	var request map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &request)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": modelDocument},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	doc, err := p.GenerateDocument(context.Background(), dom.Snapshot{URL: "https://jobs.example.com/apply", HTML: applicationForm}, testProfile())
	require.NoError(t, err)
	assert.Equal(t, protocol.FillField{Text: "Ada"}, doc.Pages[0].Instructions[0].Action)
	assert.Equal(t, "Ada", doc.UserProfileUsed["first_name"], "profile recorded when the model omits it")

	assert.Equal(t, "gpt-4o", request["model"])
	messages, ok := request["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, `"fname"`)
	assert.Contains(t, user, "ada@example.com")
}

func TestClaudeProvider_GenerateDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "Sure.\n" + modelDocument}},
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer srv.Close()

	p, err := NewClaudeProvider(Options{APIKey: "sk-ant-test", BaseURL: srv.URL})
	require.NoError(t, err)

	doc, err := p.GenerateDocument(context.Background(), dom.Snapshot{HTML: applicationForm}, testProfile())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.TotalPages)
}

func TestClaudeProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	p, err := NewClaudeProvider(Options{APIKey: "sk-ant-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.GenerateDocument(context.Background(), dom.Snapshot{HTML: applicationForm}, testProfile())
	assert.ErrorContains(t, err, "Claude API error")
}
