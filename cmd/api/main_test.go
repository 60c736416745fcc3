package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novatos-ai/assistant/backend/internal/config"
	"github.com/novatos-ai/assistant/backend/internal/service/notify"
)

func TestNewNotifierSelectsImplementation(t *testing.T) {
	n, closeFn, err := newNotifier(config.NotifierConfig{Kind: config.NotifierLog}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &notify.LogNotifier{}, n)

	n, closeFn, err = newNotifier(config.NotifierConfig{
		Kind:     config.NotifierSMTP,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		SMTPFrom: "bot@novatos.ai",
		NotifyTo: "team@novatos.ai",
	}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &notify.MailNotifier{}, n)
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
