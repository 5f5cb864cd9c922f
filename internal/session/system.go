package session

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agentcore-dev/runtime/internal/agent"
	"github.com/agentcore-dev/runtime/internal/sessionlog"
)

// bootstrapFiles are the workspace context files a main-scope session may
// read in full. A subagent scope is restricted to subagentBootstrapFiles
// so a child never inherits the parent's full memory surface.
var bootstrapFiles = []string{"AGENTS.md", "TOOLS.md", "CLAUDE.md", "CONTRIBUTING.md"}

var subagentBootstrapFiles = []string{"AGENTS.md", "TOOLS.md"}

// buildSystemPrompt re-derives the full system prompt for l's branch ahead
// of every dispatch, so edits to the agent prompt or the workspace's
// context files are picked up without restarting the session. Sections:
// the agent's own prompt template, the generated workspace/environment
// block, then any instructions pulled from context files - each rendered
// only if non-empty, joined with blank lines.
func (o *Orchestrator) buildSystemPrompt(l *sessionlog.Log, ag *agent.Agent) string {
	header := l.Header()
	scope := "main"
	if header.ParentSession != "" {
		scope = "subagent"
	}

	sections := []string{
		strings.TrimSpace(ag.Prompt),
		basePrompt(header.Cwd, scope),
		instructionsFromContextFiles(header.Cwd, scope, o.instructions),
	}

	var kept []string
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, strings.TrimSpace(s))
		}
	}
	return strings.Join(kept, "\n\n")
}

// basePrompt composes the environment block every agent prompt inherits:
// working directory, platform, date, and (main scope only) detected
// project type and git branch.
func basePrompt(cwd, scope string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are operating in %s.\n", cwd)
	fmt.Fprintf(&b, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format("2006-01-02"))

	if scope == "main" {
		if branch := getGitBranch(cwd); branch != "" {
			fmt.Fprintf(&b, "Git branch: %s\n", branch)
		}
		if kind := detectProjectType(cwd); kind != "" {
			fmt.Fprintf(&b, "Project type: %s\n", kind)
		}
	}
	return b.String()
}

// instructionsFromContextFiles concatenates the workspace's own bootstrap
// files (scoped down for subagents) with any instructions carried in
// configuration.
func instructionsFromContextFiles(cwd, scope string, configInstructions []string) string {
	files := bootstrapFiles
	if scope == "subagent" {
		files = subagentBootstrapFiles
	}

	var parts []string
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(cwd, name))
		if err != nil {
			continue
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	parts = append(parts, configInstructions...)
	return strings.Join(parts, "\n\n")
}

// getGitBranch shells out to report the current branch name, returning ""
// if cwd is not a git worktree or the command is unavailable.
func getGitBranch(cwd string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// detectProjectType makes a best-effort guess at the project's ecosystem
// from well-known marker files, to give the model a quick orientation
// hint without it needing a tool call.
func detectProjectType(cwd string) string {
	markers := map[string]string{
		"go.mod":           "Go",
		"package.json":     "Node.js",
		"Cargo.toml":       "Rust",
		"pyproject.toml":   "Python",
		"requirements.txt": "Python",
		"pom.xml":          "Java (Maven)",
		"build.gradle":     "Java/Kotlin (Gradle)",
	}
	for marker, kind := range markers {
		if _, err := os.Stat(filepath.Join(cwd, marker)); err == nil {
			return kind
		}
	}
	return ""
}
