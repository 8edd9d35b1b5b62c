package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

func TestPrintTools(t *testing.T) {
	var buf bytes.Buffer
	printTools(&buf, []schema.ToolSpec{
		{Name: "send_message", Description: "Send a WhatsApp message.\nLong details."},
		{Name: "generate_image", Description: "Create an image", Dedupe: true},
	})

	out := buf.String()
	assert.Contains(t, out, "send_message")
	assert.Contains(t, out, "Send a WhatsApp message.")
	assert.NotContains(t, out, "Long details")
	assert.Regexp(t, `generate_image\s+yes`, out)
	assert.Contains(t, out, "2 tools")
}

func TestDrainOutbound(t *testing.T) {
	b := bus.NewMessageBus(4)
	b.PublishOutbound(bus.NewOutboundMessage(bus.ChannelCLI, "direct", "first"))
	b.PublishOutbound(bus.NewOutboundMessage(bus.ChannelCLI, "direct", "second"))

	var buf bytes.Buffer
	drainOutbound(b, &buf)

	assert.Contains(t, buf.String(), "first")
	assert.Contains(t, buf.String(), "second")
	assert.Equal(t, 0, b.OutboundSize())
}

func TestCreateWorkspaceTemplates(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, createWorkspaceTemplates(ws))
	assert.FileExists(t, filepath.Join(ws, "PERSONA.md"))
	assert.FileExists(t, filepath.Join(ws, "USER.md"))

	// Existing files are left alone.
	require.NoError(t, createWorkspaceTemplates(ws))
}
