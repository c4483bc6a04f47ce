package workspace

import (
	"os"
	"os/exec"
)

// runShellHook runs command through the shell with env appended to the
// current process environment, the same inherit-plus-augment pattern the
// teacher uses for its own subprocess launches (see pty.go's startPTY).
func runShellHook(command string, env []string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)
	return cmd.Run()
}
