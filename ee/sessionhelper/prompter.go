package sessionhelper

import (
	"fmt"

	"github.com/kolide/displayd/ee/sessionipc"
)

// channelPrompter drives the REQUEST/INFO/ERROR conversation over a
// sessionipc.Channel on the Backend's behalf, so Backend implementations
// never touch the wire protocol directly.
type channelPrompter struct {
	channel *sessionipc.Channel
}

func (p *channelPrompter) Request(prompts []sessionipc.Prompt) ([]sessionipc.Prompt, error) {
	if err := p.channel.Send(sessionipc.RequestFrame(prompts)); err != nil {
		return nil, fmt.Errorf("sending REQUEST: %w", err)
	}

	reply, err := p.channel.Expect(sessionipc.OpcodeRequest)
	if err != nil {
		return nil, err
	}
	return reply.Prompts, nil
}

func (p *channelPrompter) Info(message string, kind int32) error {
	return p.channel.Send(sessionipc.InfoFrame(message, kind))
}

func (p *channelPrompter) Error(message string, kind int32) error {
	return p.channel.Send(sessionipc.ErrorFrame(message, kind))
}
