package pamlite

import (
	"context"
	"testing"

	"github.com/kolide/displayd/ee/sessionipc"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	responses []sessionipc.Prompt
}

func (f *fakePrompter) Request(prompts []sessionipc.Prompt) ([]sessionipc.Prompt, error) {
	return f.responses, nil
}
func (f *fakePrompter) Info(message string, kind int32) error  { return nil }
func (f *fakePrompter) Error(message string, kind int32) error { return nil }

func TestBackend_Autologin(t *testing.T) {
	b := NewBackend(true, "hunter2")
	require.NoError(t, b.Start(context.Background(), "alice", nil))

	user, err := b.Authenticate(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "alice", user)
}

func TestBackend_CorrectSecret(t *testing.T) {
	b := NewBackend(false, "hunter2")
	require.NoError(t, b.Start(context.Background(), "alice", nil))

	prompter := &fakePrompter{responses: []sessionipc.Prompt{{Response: "hunter2"}}}
	user, err := b.Authenticate(context.Background(), prompter)
	require.NoError(t, err)
	require.Equal(t, "alice", user)
}

func TestBackend_WrongSecret(t *testing.T) {
	b := NewBackend(false, "hunter2")
	require.NoError(t, b.Start(context.Background(), "alice", nil))

	prompter := &fakePrompter{responses: []sessionipc.Prompt{{Response: "wrong"}}}
	_, err := b.Authenticate(context.Background(), prompter)
	require.Error(t, err)
}

func TestBackend_EmptySecretRejected(t *testing.T) {
	b := NewBackend(false, "hunter2")
	require.NoError(t, b.Start(context.Background(), "alice", nil))

	prompter := &fakePrompter{responses: []sessionipc.Prompt{{Response: ""}}}
	_, err := b.Authenticate(context.Background(), prompter)
	require.Error(t, err)
}
