package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogMailerWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(zerolog.New(&buf))

	require.NoError(t, m.Send(context.Background(), Message{To: "a@x.com", Subject: "Your code", Body: "123456"}))
	require.Contains(t, buf.String(), "a@x.com")
	require.Contains(t, buf.String(), "log_mailer")
}

func TestNewSMTPMailerValidates(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "noreply@techlearn.dev"})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"})
	require.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "noreply@techlearn.dev"})
	require.NoError(t, err)
	require.Equal(t, 587, m.dialer.Port)
}
