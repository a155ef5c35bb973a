package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/erangalds/t-tool-calling-with-llms/internal/shared/llmutils"
)

const (
	webUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects    = 5
	maxBodyBytes    = 5 << 20
	defaultMaxChars = 20000
)

// HTTPRequest is the argument object of the request tool.
type HTTPRequest struct {
	Method string `json:"method" jsonschema:"enum=GET,enum=HEAD" jsonschema_description:"HTTP method to use."`
	URL    string `json:"url" jsonschema_description:"Absolute http or https URL to request."`
}

// RequestResult is the fetched page, or an error payload.
type RequestResult struct {
	URL       string `json:"url,omitempty"`
	FinalURL  string `json:"finalUrl,omitempty"`
	Status    int    `json:"status,omitempty"`
	Extractor string `json:"extractor,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Fetcher performs HTTP requests on behalf of the model and extracts
// readable content from the response.
type Fetcher struct {
	maxChars   int
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. maxChars defaults to 20000 and timeout to 30s.
func NewFetcher(timeout time.Duration, maxChars int) *Fetcher {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &Fetcher{maxChars: maxChars, httpClient: client}
}

// validateURL checks that url is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}

// Do runs the request. Network and validation failures are returned in the
// result's Error field.
func (f *Fetcher) Do(ctx context.Context, in HTTPRequest) (RequestResult, error) {
	method := strings.ToUpper(in.Method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodHead {
		return RequestResult{Error: fmt.Sprintf("method %s not allowed", method), URL: in.URL}, nil
	}
	if err := validateURL(in.URL); err != nil {
		return RequestResult{Error: fmt.Sprintf("URL validation failed: %v", err), URL: in.URL}, nil
	}

	req, err := http.NewRequestWithContext(ctx, method, in.URL, nil)
	if err != nil {
		return RequestResult{Error: err.Error(), URL: in.URL}, nil
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return RequestResult{Error: err.Error(), URL: in.URL}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return RequestResult{Error: err.Error(), URL: in.URL}, nil
	}

	text, extractor := extractText(in.URL, resp.Header.Get("Content-Type"), body)

	truncated := len(text) > f.maxChars
	if truncated {
		text = llmutils.CutUTF8(text, f.maxChars)
	}

	return RequestResult{
		URL:       in.URL,
		FinalURL:  resp.Request.URL.String(),
		Status:    resp.StatusCode,
		Extractor: extractor,
		Truncated: truncated,
		Text:      text,
	}, nil
}

func extractText(rawURL, ctype string, body []byte) (text, extractor string) {
	switch {
	case len(body) == 0:
		return "", "empty"

	case strings.Contains(ctype, "application/json"):
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			formatted, _ := json.MarshalIndent(v, "", "  ")
			return string(formatted), "json"
		}
		return string(body), "json"

	case strings.Contains(ctype, "text/html") || isHTMLPrefix(body):
		parsedURL, _ := url.Parse(rawURL)
		article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
		if err != nil {
			return stripHTMLTags(string(body)), "readability"
		}
		text = normalizeWhitespace(article.TextContent)
		if text == "" {
			text = stripHTMLTags(article.Content)
		}
		if article.Title != "" {
			text = "# " + article.Title + "\n\n" + text
		}
		return text, "readability"

	default:
		return string(body), "raw"
	}
}

// isHTMLPrefix returns true if the body starts with an HTML declaration.
func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

var (
	reScript   = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags     = regexp.MustCompile(`<[^>]+>`)
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripHTMLTags removes all HTML tags and normalizes whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	return normalizeWhitespace(text)
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// NewRequestTool returns the request tool backed by f.
func NewRequestTool(f *Fetcher) *FuncTool[HTTPRequest, RequestResult] {
	return NewFunc(string(ToolRequest),
		"Send an HTTP request to a URL and return the readable content of the response.",
		f.Do)
}
