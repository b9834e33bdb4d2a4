package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/globals"
)

var (
	// ErrExecutionTimeout is surfaced as the run output, not as a system
	// fault: the run attempt succeeded as an operation even though the
	// program did not finish in time.
	ErrExecutionTimeout    = errors.New("execution timed out")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// LanguageVersions pins the runtime version requested per language.
var LanguageVersions = map[string]string{
	"javascript": "18.15.0",
	"python":     "3.10.0",
	"java":       "15.0.2",
	"c":          "10.2.0",
	"cpp":        "10.2.0",
	"csharp":     "6.12.0",
	"go":         "1.16.2",
}

// Runner executes code on a remote Piston-compatible sandbox. The request
// carries the sandbox's own limits, but the deadline enforced here is the
// caller-side one: a hanging sandbox must not hang the requesting session.
type Runner struct {
	baseUrl        string
	client         *http.Client
	compileTimeout time.Duration
	runTimeout     time.Duration
}

type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

type executeRequest struct {
	Language       string        `json:"language"`
	Version        string        `json:"version"`
	Files          []executeFile `json:"files"`
	Stdin          string        `json:"stdin"`
	CompileTimeout int64         `json:"compile_timeout"`
	RunTimeout     int64         `json:"run_timeout"`
}

type executeFile struct {
	Content string `json:"content"`
}

type executeResponse struct {
	Run     *stageResult `json:"run"`
	Compile *stageResult `json:"compile"`
	Message string       `json:"message"`
}

type stageResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Code   int    `json:"code"`
}

func NewRunner(cfg *config.Config) *Runner {
	rc := cfg.RunnerConfig.Defaults()
	return &Runner{
		baseUrl:        rc.BaseUrl,
		client:         &http.Client{},
		compileTimeout: rc.CompileTimeout,
		runTimeout:     rc.RunTimeout,
	}
}

// Execute runs source on the remote sandbox. An empty version picks the
// pinned version for the language.
func (r *Runner) Execute(ctx context.Context, language, version, source, stdin string) (*Result, error) {
	if version == "" {
		var ok bool
		version, ok = LanguageVersions[language]
		if !ok {
			return nil, ErrUnsupportedLanguage
		}
	}
	reqBody := executeRequest{
		Language:       language,
		Version:        version,
		Files:          []executeFile{{Content: source}},
		Stdin:          stdin,
		CompileTimeout: r.compileTimeout.Milliseconds(),
		RunTimeout:     r.runTimeout.Milliseconds(),
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.compileTimeout+r.runTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseUrl+"/execute", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			globals.AppLogger.Warn("execution timed out", "language", language)
			return nil, ErrExecutionTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	var execResp executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("execution failed: %s", execResp.Message)
	}
	if execResp.Compile != nil && execResp.Compile.Code != 0 {
		return &Result{
			Stdout:   execResp.Compile.Stdout,
			Stderr:   execResp.Compile.Stderr,
			ExitCode: execResp.Compile.Code,
		}, nil
	}
	if execResp.Run == nil {
		return nil, fmt.Errorf("execution failed: empty response")
	}
	return &Result{
		Stdout:   execResp.Run.Stdout,
		Stderr:   execResp.Run.Stderr,
		ExitCode: execResp.Run.Code,
	}, nil
}
