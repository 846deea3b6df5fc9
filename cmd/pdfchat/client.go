package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/pdfchat/internal/cli"
	"github.com/hyperjump/pdfchat/internal/config"
	"github.com/hyperjump/pdfchat/internal/models"
)

const defaultServerURL = "http://localhost:8000"

// client talks to a running pdfchat server.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    http.DefaultClient,
	}
}

// clientFlags registers the flags shared by every client command.
func clientFlags(fs *flag.FlagSet) (serverURL, apiKey *string) {
	serverURL = fs.String("server", defaultServerURL, "server URL")
	apiKey = fs.String("api-key", os.Getenv(config.EnvAPIKey), "OpenAI API key (empty uses the server's key)")
	return serverURL, apiKey
}

// apiError decodes the {"error": "..."} body the server sends on failure.
func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *client) postJSON(path string, body, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Upload sends a PDF as multipart form data. Zero chunk values leave the server defaults.
func (c *client) Upload(path string, chunkSize, chunkOverlap int) (*models.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		_ = mw.WriteField("api_key", c.apiKey)
	}
	if chunkSize > 0 {
		_ = mw.WriteField("chunk_size", strconv.Itoa(chunkSize))
	}
	if chunkOverlap > 0 {
		_ = mw.WriteField("chunk_overlap", strconv.Itoa(chunkOverlap))
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/upload-pdf", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out models.UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stream posts body to path and copies the streamed text response to w as it arrives.
func (c *client) Stream(path string, body interface{}, w io.Writer) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *client) Retrieve(docID, query string, k *int) (*models.RetrieveResponse, error) {
	var out models.RetrieveResponse
	req := models.RetrieveRequest{Query: query, K: k, APIKey: c.apiKey}
	if err := c.postJSON("/api/documents/"+url.PathEscape(docID)+"/retrieve", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) Documents() ([]*models.DocumentInfo, error) {
	var out struct {
		Documents []*models.DocumentInfo `json:"documents"`
	}
	if err := c.get("/api/documents", &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (c *client) Delete(docID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/documents/"+url.PathEscape(docID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *client) Search(query *models.KeywordSearchRequest) (*models.KeywordSearchResponse, error) {
	var out models.KeywordSearchResponse
	if err := c.postJSON("/api/search", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// optionalInt returns nil unless the named flag was set explicitly.
func optionalInt(fs *flag.FlagSet, name string, v int) *int {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &v
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func outputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	chunkSize := fs.Int("chunk-size", 0, "characters per chunk (0 = server default)")
	chunkOverlap := fs.Int("chunk-overlap", 0, "characters shared by consecutive chunks")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fail("Usage: pdfchat upload [flags] <file.pdf>")
	}
	resp, err := newClient(*serverURL, *apiKey).Upload(fs.Arg(0), *chunkSize, *chunkOverlap)
	if err != nil {
		fail("Upload failed: %v", err)
	}
	fmt.Printf("%s\ndocument_id: %s\nchunks:      %d\n", resp.Message, resp.DocumentID, resp.ChunksCount)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	docID := fs.String("doc", "", "document ID")
	k := fs.Int("k", 0, "number of chunks used as context")
	model := fs.String("model", "", "chat model")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuery(fs.Args())
	if *docID == "" || question == "" {
		fail("Usage: pdfchat ask --doc <id> [flags] <question>")
	}
	req := models.RAGChatRequest{
		UserMessage: question,
		DocumentID:  *docID,
		Model:       *model,
		APIKey:      *apiKey,
		K:           optionalInt(fs, "k", *k),
	}
	if err := newClient(*serverURL, *apiKey).Stream("/api/rag-chat", req, os.Stdout); err != nil {
		fail("\nAsk failed: %v", err)
	}
	fmt.Println()
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	model := fs.String("model", "", "chat model")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	message := buildQuery(fs.Args())
	if message == "" {
		fail("Usage: pdfchat chat [flags] <message>")
	}
	req := models.ChatRequest{UserMessage: message, Model: *model, APIKey: *apiKey}
	if err := newClient(*serverURL, *apiKey).Stream("/api/chat", req, os.Stdout); err != nil {
		fail("\nChat failed: %v", err)
	}
	fmt.Println()
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	docID := fs.String("doc", "", "document ID")
	k := fs.Int("k", 0, "number of chunks")
	output := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if *docID == "" || query == "" {
		fail("Usage: pdfchat retrieve --doc <id> [flags] <query>")
	}
	format := outputFormat(*output)
	resp, err := newClient(*serverURL, *apiKey).Retrieve(*docID, query, optionalInt(fs, "k", *k))
	if err != nil {
		fail("Retrieve failed: %v", err)
	}
	if err := cli.WriteRetrieve(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	output := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format := outputFormat(*output)
	docs, err := newClient(*serverURL, *apiKey).Documents()
	if err != nil {
		fail("List failed: %v", err)
	}
	if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fail("Usage: pdfchat delete [flags] <document-id>")
	}
	docID := fs.Arg(0)
	if err := newClient(*serverURL, *apiKey).Delete(docID); err != nil {
		fail("Deletion failed: %v", err)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	limit := fs.Int("limit", 10, "maximum hits")
	fuzzy := fs.Int("fuzzy", 0, "edit distance tolerated per term (0-2)")
	output := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fail("Usage: pdfchat search [flags] <query>")
	}
	format := outputFormat(*output)
	c := newClient(*serverURL, *apiKey)
	req := &models.KeywordSearchRequest{Query: query, Limit: *limit, Fuzziness: *fuzzy}
	resp, err := c.Search(req)
	if err != nil {
		fail("Search failed: %v", err)
	}
	// Retry once with typo tolerance when an exact search finds nothing.
	if req.Fuzziness == 0 && resp.Total == 0 {
		req.Fuzziness = 1
		if fuzzyResp, fuzzyErr := c.Search(req); fuzzyErr == nil && fuzzyResp.Total > 0 {
			resp = fuzzyResp
		}
	}
	if err := cli.WriteKeywordHits(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if err := newClient(*serverURL, *apiKey).get("/api/status", &status); err != nil {
		fail("Status failed: %v", err)
	}
	switch *output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
	case "text":
		for _, key := range []string{"documents", "chunks", "indexed", "keyword_chunks"} {
			fmt.Printf("%-16s %v\n", key+":", status[key])
		}
		if cfg, ok := status["config"].(map[string]interface{}); ok {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"chunk_size", "chunk_overlap", "default_k", "max_k", "embedding_model", "chat_model", "registry_ttl", "max_documents"} {
				fmt.Printf("%-16s %v\n", key+":", cfg[key])
			}
		}
	default:
		fail("Unknown output format %q; use text or json", *output)
	}
}

func runWatch() {
	if len(os.Args) < 3 || os.Args[2] != "list" {
		fail("Usage: pdfchat watch list [--server URL]")
	}
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL, apiKey := clientFlags(fs)
	_ = fs.Parse(os.Args[3:])

	var out struct {
		Directories []string `json:"directories"`
	}
	err := newClient(*serverURL, *apiKey).get("/api/watch/directories", &out)
	if err != nil {
		fail("List failed: %v", err)
	}
	for _, d := range out.Directories {
		fmt.Println(d)
	}
}
