package mongolog

import (
	"errors"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/conf"
)

func TestLevelWriter(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	zl := zerolog.New(p.LevelWriter())
	zl.Error().
		Time(zerolog.TimestampFieldName, at).
		Str("module", "api").
		Str("user.id", "u1").
		Int("attempt", 3).
		Err(errors.New("bad token")).
		Msg("login failed")

	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 1)
	doc := docs[0]

	assert.Equal(t, []string{"Date", "Level", "Logger", "Message", "Exception", "Properties"}, keysOf(doc))
	date, _ := lookup(doc, "Date")
	assert.True(t, at.Equal(date.(time.Time)))
	level, _ := lookup(doc, "Level")
	assert.Equal(t, "Error", level)
	logger, _ := lookup(doc, "Logger")
	assert.Equal(t, "api", logger)
	msg, _ := lookup(doc, "Message")
	assert.Equal(t, "login failed", msg)

	props, _ := lookup(doc, "Properties")
	assert.Equal(t, bson.D{{Key: "user_id", Value: "u1"}, {Key: "attempt", Value: "3"}}, props)
}

func TestLevelWriterHonorsMinLevel(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer, WithConfig(&conf.MongoLog{Level: "error"}), WithConnectionString(testURI))

	zl := zerolog.New(p.LevelWriter())
	zl.Info().Msg("skip")
	zl.Warn().Msg("skip too")
	zl.Error().Msg("keep")

	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 1)
	msg, _ := lookup(docs[0], "Message")
	assert.Equal(t, "keep", msg)
}

func TestLevelWriterPlainWrite(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer)

	n, err := p.LevelWriter().Write([]byte(`{"level":"warn","message":"raw line"}` + "\n"))
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 1)
	level, _ := lookup(docs[0], "Level")
	assert.Equal(t, "Warn", level)
}

func TestLevelWriterRejectsInvalidJSON(t *testing.T) {
	p := newTestTarget(t, newMemDialer())
	_, err := p.LevelWriter().Write([]byte("not json"))
	assert.Error(t, err)
}

func TestKratosLevel(t *testing.T) {
	cases := map[zerolog.Level]log.Level{
		zerolog.TraceLevel: log.LevelDebug,
		zerolog.DebugLevel: log.LevelDebug,
		zerolog.InfoLevel:  log.LevelInfo,
		zerolog.WarnLevel:  log.LevelWarn,
		zerolog.ErrorLevel: log.LevelError,
		zerolog.FatalLevel: log.LevelFatal,
		zerolog.PanicLevel: log.LevelFatal,
		zerolog.NoLevel:    log.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, kratosLevel(in), in.String())
	}
}
