package lib

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailMsg(t *testing.T) {
	msg, err := NewMailMsg(&SendMailInput{
		From:     "reservations@example.com",
		FromName: "Reservations",
		To:       []string{"guest@example.com"},
		Subject:  "Your reservation is confirmed",
		Body:     "Table: 4",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, messageID(msg))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Subject: Your reservation is confirmed")
	assert.Contains(t, buf.String(), "Table: 4")
}

func TestNewMailMsgRejectsBadAddress(t *testing.T) {
	_, err := NewMailMsg(&SendMailInput{From: "x@example.com", To: []string{"not an address"}})
	assert.Error(t, err)
}
