package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tcriess/lightspeed-code/config"
)

func testRunner(t *testing.T, handler http.HandlerFunc, compile, run time.Duration) *Runner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{RunnerConfig: config.RunnerConfig{
		BaseUrl:        srv.URL,
		CompileTimeout: compile,
		RunTimeout:     run,
	}}
	return NewRunner(cfg)
}

func TestExecute(t *testing.T) {
	r := testRunner(t, func(w http.ResponseWriter, req *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		assert.Equal(t, "python", body["language"])
		assert.Equal(t, "3.10.0", body["version"]) // pinned default version
		json.NewEncoder(w).Encode(map[string]interface{}{
			"run": map[string]interface{}{"stdout": "1\n", "stderr": "", "code": 0},
		})
	}, time.Second, time.Second)

	res, err := r.Execute(context.Background(), "python", "", "print(1)", "")
	assert.NoError(t, err)
	assert.Equal(t, "1\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecuteProgramError(t *testing.T) {
	r := testRunner(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"run": map[string]interface{}{"stdout": "", "stderr": "NameError", "code": 1},
		})
	}, time.Second, time.Second)

	// a failing program is a successful operation
	res, err := r.Execute(context.Background(), "python", "", "nope()", "")
	assert.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "NameError", res.Stderr)
}

func TestExecuteTimeout(t *testing.T) {
	r := testRunner(t, func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, 50*time.Millisecond, 50*time.Millisecond)

	_, err := r.Execute(context.Background(), "python", "", "while True: pass", "")
	assert.ErrorIs(t, err, ErrExecutionTimeout)
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	r := testRunner(t, func(w http.ResponseWriter, req *http.Request) {}, time.Second, time.Second)

	_, err := r.Execute(context.Background(), "cobol", "", "", "")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}
