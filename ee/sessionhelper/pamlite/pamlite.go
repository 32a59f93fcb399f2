// Package pamlite is a reference Backend for sessionhelper.Driver. It
// implements the conversation shape a real PAM-backed module would --
// prompting for a secret, honoring autologin, rejecting empty secrets --
// without linking against libpam. Production deployments are expected to
// swap in a real PAM (or other) backend behind the same interface.
package pamlite

import (
	"context"
	"errors"

	"github.com/kolide/displayd/ee/sessionhelper"
	"github.com/kolide/displayd/ee/sessionipc"
)

// promptKindSecret asks for a hidden credential; the concrete int32 value
// is opaque to the wire, the greeter just needs a stable convention with
// the Orchestrator it's paired with.
const promptKindSecret sessionipc.PromptKind = 1

// Backend is a minimal stand-in authentication engine: it accepts an
// autologin flag (always succeeds), or otherwise asks the Orchestrator
// for a secret and compares it against a configured expectation.
type Backend struct {
	// ExpectedSecret is compared against the prompt response. Tests (or
	// a thin wrapper) are expected to set this; a production backend
	// would replace this whole type.
	ExpectedSecret string

	autologin bool
	user      string
}

// NewBackend constructs a Backend. autologin mirrors the Helper's
// --autologin flag.
func NewBackend(autologin bool, expectedSecret string) *Backend {
	return &Backend{ExpectedSecret: expectedSecret, autologin: autologin}
}

var errEmptySecret = errors.New("pamlite: empty secret rejected")

func (b *Backend) Start(ctx context.Context, user string, prompter sessionhelper.Prompter) error {
	b.user = user
	return nil
}

func (b *Backend) Authenticate(ctx context.Context, prompter sessionhelper.Prompter) (string, error) {
	if b.autologin {
		return b.user, nil
	}

	prompts := []sessionipc.Prompt{{Kind: promptKindSecret, Message: "Password:", Hidden: true}}
	replies, err := prompter.Request(prompts)
	if err != nil {
		return "", err
	}

	if len(replies) == 0 || replies[0].Response == "" {
		return "", errEmptySecret
	}

	if replies[0].Response != b.ExpectedSecret {
		_ = prompter.Error("authentication failed", 0)
		return "", sessionhelper.ErrBackendAuthFailed
	}

	return b.user, nil
}

func (b *Backend) OpenSession(ctx context.Context, env map[string]string) error {
	return nil
}

func (b *Backend) CloseSession(ctx context.Context) error {
	return nil
}
