package httpserver

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	h := http.NotFoundHandler()

	t.Run("timeouts are set", func(t *testing.T) {
		srv := New(":0", h, nil)
		assert.Equal(t, ":0", srv.Addr)
		assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
		assert.Equal(t, writeTimeout, srv.WriteTimeout)
		assert.Nil(t, srv.ErrorLog)
	})

	t.Run("server errors go to the structured logger", func(t *testing.T) {
		var buf bytes.Buffer
		srv := New(":0", h, slog.New(slog.NewJSONHandler(&buf, nil)))
		srv.ErrorLog.Print("http: TLS handshake error")
		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), "TLS handshake error")
	})
}
