package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "alice_bob", DirectKey("alice", "bob"))
	assert.Equal(t, DirectKey("alice", "bob"), DirectKey("bob", "alice"))
}

func TestChatHasMember(t *testing.T) {
	chat := Chat{Members: []string{"a", "b"}}
	assert.True(t, chat.HasMember("a"))
	assert.False(t, chat.HasMember("c"))
}

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
		ok      bool
	}{
		{name: "text", payload: TextPayload("hi"), ok: true},
		{name: "blank text", payload: TextPayload("   "), ok: false},
		{name: "file", payload: FilePayload(FileAttachment{Name: "a.pdf", URL: "https://x/a.pdf", Mime: "application/pdf", SizeBytes: 10}), ok: true},
		{name: "file without url", payload: FilePayload(FileAttachment{Name: "a.pdf"}), ok: false},
		{name: "file nil", payload: Payload{Kind: KindFile}, ok: false},
		{name: "unknown kind", payload: Payload{Kind: "sticker", Text: "x"}, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problem := tc.payload.Validate()
			if tc.ok {
				assert.Empty(t, problem)
			} else {
				assert.NotEmpty(t, problem)
			}
		})
	}
}
