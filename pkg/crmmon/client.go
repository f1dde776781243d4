// Package crmmon fetches and parses the status of a Pacemaker cluster by
// running crm_mon, the cluster's status reporting tool.
//
// The package has two concerns, kept separate so their failures stay
// distinguishable:
//
//  1. Client invokes crm_mon as a subprocess, once per call, in either its
//     XML report mode or its HTML report mode. It performs no parsing and no
//     retries; an unrunnable binary or non-zero exit surfaces as a
//     CommandError.
//
//  2. Parse turns raw XML report bytes into a navigable Result tree. Byte
//     streams that are not well-formed XML surface as a ParseError.
//
// Every call is an independent point-in-time snapshot; nothing is cached
// between calls.
package crmmon

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/marcan/pacemaker-exporter/pkg/exec"
)

const (
	defaultCrmMonPath = "crm_mon"

	// execTimeout bounds each crm_mon invocation so a hung cluster stack
	// cannot pile up scrape goroutines indefinitely.
	execTimeout = 10 * time.Second

	// maxXMLSize caps accepted tool output. Prevents XML bombs.
	maxXMLSize = 10 * 1024 * 1024
)

// execFunc matches exec.Execute; swapped out in tests.
type execFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Client invokes crm_mon on demand. It is stateless and safe for concurrent
// use; each call runs one fresh subprocess.
type Client struct {
	path    string
	execute execFunc
}

// NewClient returns a Client running the crm_mon binary at path, or the one
// found on PATH when path is empty.
func NewClient(path string) *Client {
	if path == "" {
		path = defaultCrmMonPath
	}
	return &Client{path: path, execute: exec.Execute}
}

// XML returns the raw structured cluster status document (crm_mon -X).
func (c *Client) XML(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "-X")
}

// HTML returns the human-readable web report (crm_mon -w). The output still
// carries the CGI-style header block crm_mon emits in this mode.
func (c *Client) HTML(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "-w")
}

func (c *Client) run(ctx context.Context, mode string) ([]byte, error) {
	ctxExec, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	stdout, stderr, err := c.execute(ctxExec, c.path, mode)
	if err != nil {
		return nil, &CommandError{Command: c.path + " " + mode, Stderr: stderr, Err: err}
	}

	if stderr != "" {
		klog.V(4).Infof("%s %s produced stderr: %s", c.path, mode, stderr)
	}

	return []byte(stdout), nil
}

// Parse parses raw crm_mon XML output into a Result tree.
func Parse(data []byte) (*Result, error) {
	if len(data) > maxXMLSize {
		return nil, &ParseError{Err: fmt.Errorf("XML output too large: %d bytes (max: %d bytes)", len(data), maxXMLSize)}
	}

	var result Result
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, &ParseError{Err: err}
	}

	return &result, nil
}
