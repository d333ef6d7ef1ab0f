package detect

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// CmdClassifier runs an external inference process and speaks line-delimited
// JSON over its stdin/stdout: one request object per line, one response
// object per line. The process is started once and reused for every tile,
// so model load cost is paid a single time.
type CmdClassifier struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	enc  *json.Encoder
	resp *bufio.Scanner
}

type inferenceRequest struct {
	Tile   [][]float64 `json:"tile"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

type inferenceResponse struct {
	Probability float64 `json:"probability"`
	Error       string  `json:"error,omitempty"`
}

// NewCmdClassifier starts the inference command with the given model path.
// It fails fast when the command is not on PATH or the model file does not
// exist, so the caller can fall back to the threshold scorer at startup.
func NewCmdClassifier(command, modelPath string) (*CmdClassifier, error) {
	if command == "" {
		return nil, fmt.Errorf("no classifier command configured")
	}
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("classifier command unavailable: %w", err)
	}
	if modelPath != "" {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("classifier model unavailable: %w", err)
		}
	}

	args := []string{}
	if modelPath != "" {
		args = append(args, "--model", modelPath)
	}
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("classifier stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("classifier stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting classifier: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &CmdClassifier{
		cmd:  cmd,
		enc:  json.NewEncoder(stdin),
		resp: scanner,
	}, nil
}

// Predict sends one tile to the inference process and reads back its
// probability. Calls are serialized; the protocol is strictly one response
// per request.
func (c *CmdClassifier) Predict(tile [][]float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := inferenceRequest{Tile: tile, Height: len(tile)}
	if len(tile) > 0 {
		req.Width = len(tile[0])
	}
	if err := c.enc.Encode(req); err != nil {
		return 0, fmt.Errorf("writing inference request: %w", err)
	}

	if !c.resp.Scan() {
		if err := c.resp.Err(); err != nil {
			return 0, fmt.Errorf("reading inference response: %w", err)
		}
		return 0, fmt.Errorf("classifier process closed its output")
	}

	var resp inferenceResponse
	if err := json.Unmarshal(c.resp.Bytes(), &resp); err != nil {
		return 0, fmt.Errorf("decoding inference response: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("classifier: %s", resp.Error)
	}
	return resp.Probability, nil
}

// Close terminates the inference process.
func (c *CmdClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
