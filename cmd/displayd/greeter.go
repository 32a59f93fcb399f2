package main

import (
	"log/slog"

	"github.com/kolide/displayd/ee/sessionipc"
)

// logGreeter is the minimal orchestrator.Greeter this daemon wires up on
// its own: the graphical greeter UI is a separate collaborator entirely
// out of scope for this core. It surfaces INFO/ERROR to the log and
// answers every REQUEST with empty responses, which is enough to drive
// an autologin-only deployment; a real greeter process would replace
// this by implementing the same interface over its own UI.
type logGreeter struct {
	logger *slog.Logger
}

func (g *logGreeter) Prompt(prompts []sessionipc.Prompt) ([]sessionipc.Prompt, error) {
	replies := make([]sessionipc.Prompt, len(prompts))
	copy(replies, prompts)
	return replies, nil
}

func (g *logGreeter) Notify(message string, kind int32) {
	g.logger.Info("greeter info", "message", message, "kind", kind)
}

func (g *logGreeter) NotifyError(message string, kind int32) {
	g.logger.Warn("greeter error", "message", message, "kind", kind)
}
