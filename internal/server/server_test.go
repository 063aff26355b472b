package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHttpServer_ServesHandlers(t *testing.T) {
	hello := AsHttpHandler("/hello", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello")
	}))

	server := NewHttpServer(HttpServerParams{
		Config:   HttpConfig{Host: "127.0.0.1", Port: 0},
		Handlers: []*HttpHandler{hello.Handler},
		Logger:   zaptest.NewLogger(t),
	})

	require.NoError(t, server.Listen(context.Background()))
	go server.Serve()
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
	})

	res, err := http.Get(fmt.Sprintf("http://%s/hello", server.Addr()))
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello", string(body))
}

func TestHttpServer_ServeWithoutListen(t *testing.T) {
	server := NewHttpServer(HttpServerParams{
		Config: HttpConfig{Host: "127.0.0.1", Port: 0},
		Logger: zaptest.NewLogger(t),
	})

	assert.Nil(t, server.Addr())
	assert.Error(t, server.Serve())
}
