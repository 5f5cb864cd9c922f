package extension

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/agentcore-dev/runtime/internal/mcp"
	"github.com/agentcore-dev/runtime/internal/permission"
	"github.com/agentcore-dev/runtime/internal/tool"
	"github.com/agentcore-dev/runtime/pkg/types"
)

// ReloadCallback is invoked after a reload swaps in a new tool set, so a
// caller (the session orchestrator) can publish a status report and make
// the new tools visible to in-flight sessions.
type ReloadCallback func(registered []string, conflicts, loadErrors int)

// Manager owns the currently discovered module set and the composed tool
// registry derived from it. One Manager serves the whole process; sessions
// read its current tool set through the shared *tool.Registry it mutates.
type Manager struct {
	mu       sync.Mutex
	dirs     []string
	builtins []tool.Tool
	registry *tool.Registry
	policy   types.Policy
	checker  *permission.Checker

	modules   []*LoadedModule
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	onReload  ReloadCallback
	mcpConfig map[string]types.MCPConfig
	mcpClient *mcp.Client
}

// NewManager constructs a Manager. registry receives composed tools on
// every Reload; its builtin tools (already registered before NewManager is
// called) anchor composition order.
func NewManager(dirs []string, registry *tool.Registry, policy types.Policy, checker *permission.Checker) *Manager {
	return &Manager{
		dirs:     dirs,
		builtins: registry.List(),
		registry: registry,
		policy:   policy,
		checker:  checker,
	}
}

// SetMCPServers installs the MCP server configuration consulted on every
// subsequent Reload. Passing a new map replaces the previous one; the
// client built from the old map is closed on the next Reload.
func (m *Manager) SetMCPServers(cfg map[string]types.MCPConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mcpConfig = cfg
}

// OnReload installs the callback Reload invokes after a successful swap.
func (m *Manager) OnReload(cb ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = cb
}

// Reload performs: purge cached modules -> rediscover -> rebuild tool set
// -> swap into the registry -> publish status via the installed callback.
// Plugins opened once via plugin.Open remain resident in process memory
// for the life of the process (a documented Go runtime limitation — there
// is no Close); "purge" here means discarding this Manager's references so
// a module removed from disk drops out of the next composed tool set, not
// unloading its code from the process.
func (m *Manager) Reload() error {
	result, err := Discover(m.dirs)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.modules = result.Modules

	prevMCPClient := m.mcpClient
	mcpTools, mcpClient, mcpLoadErrors := ComposeMCPTools(context.Background(), m.mcpConfig)
	m.mcpClient = mcpClient

	tools, report := Compose(m.builtins, result.Modules, len(result.Errors)+mcpLoadErrors, ComposeOptions{
		Policy:   m.policy,
		Checker:  m.checker,
		MCPTools: mcpTools,
	})
	for _, t := range tools {
		m.registry.Register(t)
	}
	registered := make([]string, 0, len(tools))
	for _, t := range tools {
		registered = append(registered, t.ID())
	}
	cb := m.onReload
	m.mu.Unlock()

	if prevMCPClient != nil {
		prevMCPClient.Close()
	}

	for _, le := range result.Errors {
		log.Warn().Str("path", le.Path).Str("error", le.Error).Msg("extension: load error: " + le.Message)
	}
	for _, c := range report.Conflicts {
		log.Warn().Str("tool", c.ToolName).Msg("extension: tool name conflict, builtin/first-extension wins")
	}

	if cb != nil {
		cb(registered, len(report.Conflicts), report.LoadErrors)
	}
	return nil
}

// Watch starts an fsnotify watch on every configured extension directory
// and triggers Reload on any create/write/remove. Returns nil, nil when
// dirs is empty.
func (m *Manager) Watch() error {
	if len(m.dirs) == 0 {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range m.dirs {
		if err := w.Add(dir); err != nil {
			log.Warn().Str("dir", dir).Err(err).Msg("extension: cannot watch directory")
		}
	}

	m.mu.Lock()
	m.watcher = w
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-stopCh:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
					if err := m.Reload(); err != nil {
						log.Error().Err(err).Msg("extension: reload after fs event failed")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("extension: watcher error")
			}
		}
	}()
	return nil
}

// Stop halts the fsnotify watch goroutine, if one was started, and closes
// any MCP server connections opened by the last Reload.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mcpClient != nil {
		m.mcpClient.Close()
		m.mcpClient = nil
	}
	if m.watcher == nil {
		return nil
	}
	close(m.stopCh)
	return m.watcher.Close()
}

// Modules returns the currently loaded module set.
func (m *Manager) Modules() []*LoadedModule {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*LoadedModule, len(m.modules))
	copy(out, m.modules)
	return out
}
