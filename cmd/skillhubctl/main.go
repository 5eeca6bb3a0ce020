package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var version = "dev"

var out io.Writer = os.Stdout

// callClient bounds request/response commands; streamClient never times out.
var (
	callClient   = &http.Client{Timeout: 5 * time.Minute}
	streamClient = &http.Client{}
)

// loadEnvFile sources ~/.skillhub/env. Variables already set in the process
// environment win.
func loadEnvFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	if err := godotenv.Load(filepath.Join(home, ".skillhub", "env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func main() {
	loadEnvFile()
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintf(out, "skillhubctl %s\n", version)
	case "status":
		doStatus()
	case "health":
		doHealth()
	case "provider", "providers":
		doProviders()
	case "usage":
		doUsage()
	case "call":
		doCall(args)
	case "session", "sessions":
		doSessions(args)
	case "stats":
		doStats()
	case "events":
		doEvents()
	case "help", "--help", "-h":
		usageTo(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	usageTo(os.Stderr)
}

func usageTo(w io.Writer) {
	_, _ = fmt.Fprintf(w, `skillhubctl: command line client for the SkillHub API

Usage: skillhubctl <command> [arguments]

Environment:
  SKILLHUB_URL          Base URL (default: http://localhost:3000)

  ~/.skillhub/env       Auto-sourced on startup.
                        Explicit environment variables take precedence.

Commands:
  status                          Show server status and provider count
  health                          Show per-provider health
  providers                       List the enabled providers in dispatch order
  usage                           Show per-provider usage totals

  call <prompt> [--model M] [--provider P] [--retries N]
                                  Route a single user message

  sessions list [--status a,b] [--priority X,Y] [--tags t] [--limit N]
  sessions get <id>
  sessions create <json>
  sessions status <id> <status>
  sessions message <id> <role> <content>
  sessions archive [days]
  sessions stats

  stats                           Show rolling routing stats
  events                          Stream real-time SSE events

  version                         Show version
  help                            Show this help

Examples:
  skillhubctl call "Summarize the incident" --model claude-sonnet-4
  skillhubctl sessions create '{"title":"Triage","priority":"HIGH","tags":["ops"]}'
  skillhubctl sessions list --status pending,active --limit 20
`)
}

// --- HTTP helpers ---

func baseURL() string {
	if u := os.Getenv("SKILLHUB_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:3000"
}

func doRequest(method, path string, body io.Reader) (*http.Response, error) {
	return send(callClient, method, path, body)
}

func send(c *http.Client, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, baseURL()+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if method == http.MethodPost {
			req.Header.Set("Idempotency-Key", uuid.NewString())
		}
	}
	return c.Do(req)
}

func doGet(path string) map[string]any {
	resp, err := doRequest(http.MethodGet, path, nil)
	fatal(err)
	defer func() { _ = resp.Body.Close() }()
	return readJSON(resp)
}

func doPost(path, bodyJSON string) map[string]any {
	resp, err := doRequest(http.MethodPost, path, strings.NewReader(bodyJSON))
	fatal(err)
	defer func() { _ = resp.Body.Close() }()
	return readJSON(resp)
}

func doPut(path, bodyJSON string) map[string]any {
	resp, err := doRequest(http.MethodPut, path, strings.NewReader(bodyJSON))
	fatal(err)
	defer func() { _ = resp.Body.Close() }()
	return readJSON(resp)
}

func readJSON(resp *http.Response) map[string]any {
	data, err := io.ReadAll(resp.Body)
	fatal(err)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "HTTP %d: %s\n", resp.StatusCode, strings.TrimSpace(string(data)))
		os.Exit(1)
	}
	result, err := decodeObject(data)
	if err != nil {
		fmt.Fprintln(out, string(data))
		os.Exit(0)
	}
	return result
}

func decodeObject(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func prettyJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func fatal(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func requireArgs(args []string, min int, usage string) {
	if len(args) < min {
		fmt.Fprintf(os.Stderr, "usage: skillhubctl %s\n", usage)
		os.Exit(1)
	}
}

// flagValue returns the argument following name, or "".
func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func parseLimit(args []string) int {
	if n, _ := strconv.Atoi(flagValue(args, "--limit")); n > 0 {
		return n
	}
	return 50
}

// --- Commands ---

func doStatus() {
	resp, err := doRequest(http.MethodGet, "/healthz", nil)
	fatal(err)
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	h, _ := decodeObject(data)

	status := "unknown"
	if s, ok := h["status"].(string); ok {
		status = s
	}
	v, _ := h["version"].(string)

	fmt.Fprintf(out, "Server:     %s\n", baseURL())
	fmt.Fprintf(out, "Status:     %s\n", status)
	fmt.Fprintf(out, "Version:    %s\n", v)
	fmt.Fprintf(out, "Providers:  %s\n", fmtNum(h["providers"]))
	fmt.Fprintf(out, "Uptime:     %s\n", fmtUptime(h["uptime_seconds"]))
}

func doHealth() {
	data := doGet("/admin/v1/health")
	providers, _ := data["providers"].([]any)
	if len(providers) == 0 {
		fmt.Fprintln(out, "No provider health data available.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROVIDER\tSTATE\tCONSEC_ERR\tERROR RATE\tLAST SUCCESS\tLAST ERROR")
	for _, p := range providers {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["provider"].(string)
		state, _ := m["state"].(string)
		lastErr, _ := m["last_error"].(string)
		if len(lastErr) > 60 {
			lastErr = lastErr[:57] + "..."
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id, state, fmtNum(m["consecutive_failures"]), fmtPercent(m["error_rate"]),
			fmtTime(m["last_success_at"]), lastErr)
	}
	_ = tw.Flush()
}

func doProviders() {
	data := doGet("/api/v1/llm/providers")
	providers, _ := data["providers"].([]any)
	if len(providers) == 0 {
		fmt.Fprintln(out, "No providers enabled.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tPROVIDER\tMODEL\tPRIORITY")
	for i, p := range providers {
		m, _ := p.(map[string]any)
		id, _ := m["provider"].(string)
		model, _ := m["model"].(string)
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, id, model, fmtNum(m["priority"]))
	}
	_ = tw.Flush()
}

func doUsage() {
	data := doGet("/api/v1/llm/usage")
	providers, _ := data["providers"].(map[string]any)
	if len(providers) == 0 {
		fmt.Fprintln(out, "No usage recorded.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROVIDER\tREQUESTS\tTOKENS\tAVG LATENCY")
	for _, id := range sortedKeys(providers) {
		m, _ := providers[id].(map[string]any)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			id, fmtNum(m["requests"]), fmtNum(m["tokens"]), fmtDuration(m["avg_latency_ms"]))
	}
	_ = tw.Flush()
}

func doCall(args []string) {
	requireArgs(args, 1, "call <prompt> [--model M] [--provider P] [--retries N]")
	body := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": args[0]}},
	}
	if m := flagValue(args, "--model"); m != "" {
		body["model"] = m
	}
	if p := flagValue(args, "--provider"); p != "" {
		body["provider"] = p
	}
	if n, err := strconv.Atoi(flagValue(args, "--retries")); err == nil {
		body["max_retries"] = n
	}
	b, _ := json.Marshal(body)
	res := doPost("/api/v1/llm/call", string(b))

	provider, _ := res["provider"].(string)
	model, _ := res["model"].(string)
	content, _ := res["content"].(string)
	fmt.Fprintf(out, "[%s/%s in %s]\n%s\n", provider, model, fmtDuration(res["latency_ms"]), content)
	if u, ok := res["usage"].(map[string]any); ok {
		fmt.Fprintf(out, "\ntokens: %s prompt, %s completion, %s total\n",
			fmtNum(u["prompt_tokens"]), fmtNum(u["completion_tokens"]), fmtNum(u["total_tokens"]))
	}
}

func doSessions(args []string) {
	requireArgs(args, 1, "sessions <list|get|create|status|message|archive|stats> [args]")
	switch args[0] {
	case "list":
		q := url.Values{}
		for _, f := range []string{"status", "priority", "tags"} {
			if v := flagValue(args[1:], "--"+f); v != "" {
				q.Set(f, v)
			}
		}
		q.Set("limit", strconv.Itoa(parseLimit(args[1:])))
		printSessions(doGet("/api/v1/sessions?" + q.Encode()))
	case "get":
		requireArgs(args, 2, "sessions get <id>")
		fmt.Fprintln(out, prettyJSON(doGet("/api/v1/sessions/"+url.PathEscape(args[1]))))
	case "create":
		requireArgs(args, 2, "sessions create <json>")
		res := doPost("/api/v1/sessions", args[1])
		id, _ := res["id"].(string)
		fmt.Fprintf(out, "Created session %s\n", id)
	case "status":
		requireArgs(args, 3, "sessions status <id> <status>")
		res := doPut("/api/v1/sessions/"+url.PathEscape(args[1])+"/status", `{"status":`+jsonStr(args[2])+`}`)
		status, _ := res["status"].(string)
		fmt.Fprintf(out, "Session %s is now %s\n", args[1], status)
	case "message":
		requireArgs(args, 4, "sessions message <id> <role> <content>")
		b, _ := json.Marshal(map[string]string{"role": args[2], "content": args[3]})
		res := doPost("/api/v1/sessions/"+url.PathEscape(args[1])+"/messages", string(b))
		msgs, _ := res["messages"].([]any)
		fmt.Fprintf(out, "Session %s has %d messages\n", args[1], len(msgs))
	case "archive":
		body := "{}"
		if len(args) > 1 {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				fatal(fmt.Errorf("invalid day count %q", args[1]))
			}
			body = fmt.Sprintf(`{"older_than_days":%d}`, days)
		}
		res := doPost("/api/v1/sessions/archive", body)
		fmt.Fprintf(out, "Archived %s sessions\n", fmtNum(res["archived"]))
	case "stats":
		fmt.Fprintln(out, prettyJSON(doGet("/api/v1/sessions/stats")))
	default:
		fmt.Fprintf(os.Stderr, "unknown sessions subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func printSessions(data map[string]any) {
	sessions, _ := data["sessions"].([]any)
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPRIORITY\tSTATUS\tUPDATED\tTITLE")
	for _, s := range sessions {
		m, _ := s.(map[string]any)
		id, _ := m["id"].(string)
		prio, _ := m["priority"].(string)
		status, _ := m["status"].(string)
		title, _ := m["title"].(string)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", id, prio, status, fmtTime(m["updated_at"]), title)
	}
	_ = tw.Flush()
}

func doStats() {
	fmt.Fprintln(out, prettyJSON(doGet("/admin/v1/stats")))
}

func doEvents() {
	resp, err := send(streamClient, http.MethodGet, "/admin/v1/events", nil)
	fatal(err)
	defer func() { _ = resp.Body.Close() }()

	fmt.Fprintln(out, "Streaming events (Ctrl-C to stop)...")
	if err := streamEvents(resp.Body, out); err == nil {
		fmt.Fprintln(out, "Event stream closed.")
	}
}

// streamEvents prints one line per SSE data frame until r is exhausted.
func streamEvents(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var evt map[string]any
		if json.Unmarshal([]byte(strings.TrimSpace(payload)), &evt) != nil {
			continue
		}
		_, _ = fmt.Fprintln(w, formatEvent(evt))
	}
	return sc.Err()
}

func formatEvent(evt map[string]any) string {
	ts := fmtClock(evt["timestamp"])
	evtType, _ := evt["type"].(string)
	provider, _ := evt["provider"].(string)
	model, _ := evt["model"].(string)
	switch {
	case evtType == "health_changed":
		status, _ := evt["status"].(string)
		return fmt.Sprintf("[%s] %s  provider=%s state=%s", ts, evtType, provider, status)
	case evtType == "sessions_archived":
		return fmt.Sprintf("[%s] %s  count=%s", ts, evtType, fmtNum(evt["count"]))
	case evt["session_id"] != nil:
		sid, _ := evt["session_id"].(string)
		status, _ := evt["status"].(string)
		return fmt.Sprintf("[%s] %s  session=%s status=%s", ts, evtType, sid, status)
	case evt["error_msg"] != nil:
		msg, _ := evt["error_msg"].(string)
		return fmt.Sprintf("[%s] %s  provider=%s model=%s attempt=%s error=%s",
			ts, evtType, provider, model, fmtNum(evt["attempt"]), msg)
	default:
		return fmt.Sprintf("[%s] %s  provider=%s model=%s latency=%s tokens=%s",
			ts, evtType, provider, model, fmtDuration(evt["latency_ms"]), fmtNum(evt["tokens"]))
	}
}

// --- formatting ---

func fmtNum(v any) string {
	if v == nil {
		return "-"
	}
	switch n := v.(type) {
	case float64:
		if n == float64(int(n)) {
			return strconv.Itoa(int(n))
		}
		return strconv.FormatFloat(n, 'f', 2, 64)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fmtPercent(v any) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f%%", f*100)
	}
	return "-"
}

func fmtDuration(v any) string {
	if v == nil {
		return "-"
	}
	if f, ok := v.(float64); ok {
		if f < 1000 {
			return fmt.Sprintf("%.0fms", f)
		}
		return fmt.Sprintf("%.1fs", f/1000)
	}
	return fmt.Sprintf("%v", v)
}

func fmtUptime(v any) string {
	f, ok := v.(float64)
	if !ok {
		return "-"
	}
	return (time.Duration(f) * time.Second).String()
}

func fmtTime(v any) string {
	s, ok := v.(string)
	if !ok {
		return "-"
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func fmtClock(v any) string {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.Local().Format("15:04:05")
		}
	}
	return time.Now().Format("15:04:05")
}

func jsonStr(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
