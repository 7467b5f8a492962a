package chronodm

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware(t *testing.T) {
	e := newTestEnv(t)
	var buf bytes.Buffer
	Use(LoggingMiddleware(zerolog.New(&buf)))

	d := newArticle(t, e, "title 1")
	out := buf.String()
	require.Contains(t, out, `"op":"create"`)
	require.Contains(t, out, `"model":"testArticle"`)
	require.Contains(t, out, `"owner":"`+d.Record().ID.Hex()+`"`)
	require.Contains(t, out, `"message":"chronodm operation"`)
	require.NotContains(t, out, `"level":"warn"`)

	buf.Reset()
	_, err := d.Version(e.ctx, Number(7))
	require.ErrorIs(t, err, ErrVersionNotFound)
	require.NotContains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	e.store.failReplace = errBoom
	e.clock.Advance(time.Hour)
	d.Record().Title = "title 2"
	require.ErrorIs(t, d.Save(e.ctx), errBoom)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"error":"boom"`)
}

func TestSetLogger(t *testing.T) {
	e := newTestEnv(t)
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { SetLogger(zerolog.Nop()) })

	d := newArticle(t, e, "title 1", "title 2")
	require.NoError(t, d.Migrate(e.ctx, 1))

	var saved, migrating int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		switch {
		case strings.Contains(line, `"message":"version saved"`):
			saved++
		case strings.Contains(line, `"message":"migrating record"`):
			migrating++
		}
	}
	require.Equal(t, 3, saved)
	require.Equal(t, 1, migrating)
	require.Contains(t, buf.String(), `"action":"close_out"`)
	require.Contains(t, buf.String(), `"action":"capture_migration"`)
}
