package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionTitleFromMessage(t *testing.T) {
	assert.Equal(t, "short question", SessionTitleFromMessage("short question"))

	exact := strings.Repeat("a", 30)
	assert.Equal(t, exact, SessionTitleFromMessage(exact))

	long := "Which patients mentioned lower back pain last week?"
	assert.Equal(t, "Which patients mentioned lower...", SessionTitleFromMessage(long))
}

func TestSessionTitleFromMessage_CountsRunes(t *testing.T) {
	msg := strings.Repeat("é", 31)
	title := SessionTitleFromMessage(msg)
	assert.Equal(t, strings.Repeat("é", 30)+"...", title)
}

func TestSessionPreview(t *testing.T) {
	assert.Equal(t, "New Chat", SessionPreview(nil))

	short := "hello"
	assert.Equal(t, "hello", SessionPreview(&short))

	long := strings.Repeat("x", 60)
	assert.Equal(t, strings.Repeat("x", 50)+"...", SessionPreview(&long))
}
