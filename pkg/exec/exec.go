// Package exec runs the cluster status tooling as a subprocess.
package exec

import (
	"context"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"
)

// Execute runs the given command and returns its stdout and stderr. The
// context bounds the subprocess lifetime; a non-zero exit or an unrunnable
// binary is reported through err.
func Execute(ctx context.Context, name string, args ...string) (stdout, stderr string, err error) {
	klog.V(2).Infof("Executing: %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)

	var outBuilder, errBuilder strings.Builder
	cmd.Stdout = &outBuilder
	cmd.Stderr = &errBuilder

	err = cmd.Run()

	klog.V(4).Infof("  stderr: %s", errBuilder.String())
	klog.V(4).Infof("  err: %v", err)

	return outBuilder.String(), errBuilder.String(), err
}
