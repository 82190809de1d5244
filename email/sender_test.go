package email

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{"Simple address", "a@b.co", true},
		{"Address with plus tag", "user+tag@example.com", true},
		{"Surrounding whitespace tolerated", "  user@example.com  ", true},
		{"Missing domain", "user@", false},
		{"Missing local part", "@example.com", false},
		{"Space inside", "a b@c.co", false},
		{"No TLD", "user@host", false},
		{"Empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateAddress(tc.addr))
		})
	}
}

func TestSendNewsletterFailsWhenUnconfigured(t *testing.T) {
	sender := NewSender(&Config{}, logrus.New())

	err := sender.SendNewsletter(Data{
		ToEmail: "user@example.com",
		Content: "hello",
		Keyword: "golang",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSendNewsletterRejectsBadRecipient(t *testing.T) {
	sender := NewSender(&Config{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		Username:   "user",
		Password:   "pass",
		FromEmail:  "from@example.com",
	}, logrus.New())

	err := sender.SendNewsletter(Data{ToEmail: "not-an-address", Keyword: "golang"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestRenderBody(t *testing.T) {
	sender := NewSender(&Config{}, logrus.New())

	body, err := sender.renderBody(Data{
		ToName:  "Ada",
		Content: "## Highlights\nGo is trending.",
		Keyword: "golang",
	})
	assert.NoError(t, err)
	assert.Contains(t, body, "Newsletter Draft: golang")
	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "Go is trending.")
}
