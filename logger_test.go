package mongolog

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/collection"
	"github.com/go-lynx/lynx-mongolog/conf"
	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

const testURI = "mongodb://localhost/app"

func newTestTarget(t *testing.T, dialer *memDialer, opts ...Option) *PlugMongoLog {
	t.Helper()
	opts = append([]Option{
		WithConnectionString(testURI),
		WithDialer(dialer),
		WithDiagnosticsWriter(&bytes.Buffer{}),
	}, opts...)
	p := NewMongoLogTarget(opts...)
	require.NoError(t, p.Load(nil))
	t.Cleanup(func() { _ = p.CleanupTasks() })
	return p
}

func TestLoggerMapsKeyvals(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer)

	err := p.Logger().Log(log.LevelError,
		"module", "orders",
		"msg", "charge failed",
		"err", errors.New("card declined"),
		"order.id", 42,
		"retry", true,
	)
	require.NoError(t, err)

	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 1)
	doc := docs[0]

	assert.Equal(t, []string{"Date", "Level", "Logger", "Message", "Exception", "Properties"}, keysOf(doc))

	logger, _ := lookup(doc, "Logger")
	assert.Equal(t, "orders", logger)
	msg, _ := lookup(doc, "Message")
	assert.Equal(t, "charge failed", msg)

	exc, _ := lookup(doc, "Exception")
	excMsg, _ := lookup(exc.(bson.D), "Message")
	assert.Equal(t, "card declined", excMsg)

	props, _ := lookup(doc, "Properties")
	assert.Equal(t, bson.D{{Key: "order_id", Value: "42"}, {Key: "retry", Value: "true"}}, props)
}

func TestLoggerCustomLoggerKey(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer, WithConfig(&conf.MongoLog{LoggerKey: "caller"}), WithConnectionString(testURI))

	require.NoError(t, p.Logger().Log(log.LevelInfo, "caller", "main.go:12", "module", "x"))

	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 1)
	logger, _ := lookup(docs[0], "Logger")
	assert.Equal(t, "main.go:12", logger)
	props, _ := lookup(docs[0], "Properties")
	assert.Equal(t, bson.D{{Key: "module", Value: "x"}}, props)
}

func TestLoggerMinLevel(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer, WithConfig(&conf.MongoLog{Level: "warn"}), WithConnectionString(testURI))

	require.NoError(t, p.Logger().Log(log.LevelInfo, "msg", "dropped"))
	require.NoError(t, p.Logger().Log(log.LevelError, "msg", "kept"))

	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 1)
	msg, _ := lookup(docs[0], "Message")
	assert.Equal(t, "kept", msg)
}

func TestLoggerWriteErrorPolicy(t *testing.T) {
	t.Run("swallowed by default", func(t *testing.T) {
		dialer := newMemDialer()
		dialer.err = errInsert
		var diagOut bytes.Buffer
		p := newTestTarget(t, dialer, WithDiagnosticsWriter(&diagOut))

		assert.NoError(t, p.Logger().Log(log.LevelInfo, "msg", "lost"))
		assert.Contains(t, diagOut.String(), "insert failed")
	})

	t.Run("propagated when configured", func(t *testing.T) {
		dialer := newMemDialer()
		dialer.err = errInsert
		p := newTestTarget(t, dialer, WithConfig(&conf.MongoLog{RethrowWriteErrors: true}), WithConnectionString(testURI))

		err := p.Logger().Log(log.LevelInfo, "msg", "lost")
		assert.ErrorIs(t, err, errInsert)
	})
}

func TestLoggerConfigErrorPolicy(t *testing.T) {
	dialer := newMemDialer()
	layoutURI := `{{ env "MONGOLOG_TEST_UNSET_URI" }}`

	p := newTestTarget(t, dialer, WithConnectionString(layoutURI))
	err := p.Logger().Log(log.LevelInfo, "msg", "nowhere")
	assert.True(t, errx.IsConfiguration(err))

	quiet := newTestTarget(t, dialer,
		WithConfig(&conf.MongoLog{RethrowConfigErrors: conf.Bool(false)}),
		WithConnectionString(layoutURI),
	)
	assert.NoError(t, quiet.Logger().Log(log.LevelInfo, "msg", "nowhere"))
}

func TestLoggerBatched(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer, WithBatch(2, "1h"))

	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, p.Logger().Log(log.LevelInfo, "msg", m))
	}

	// the first two were flushed by size
	require.Len(t, dialer.docs(testURI, "app", "logs"), 2)

	require.NoError(t, p.CleanupTasks())
	docs := dialer.docs(testURI, "app", "logs")
	require.Len(t, docs, 3)
	for i, m := range []string{"a", "b", "c"} {
		msg, _ := lookup(docs[i], "Message")
		assert.Equal(t, m, msg)
	}
}

func TestLoggerTimestampKey(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer, WithCollection(`logs-{{ .Date "2006" }}`))

	at := time.Date(2023, 5, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, p.Logger().Log(log.LevelInfo, "ts", at, "msg", "dated"))

	docs := dialer.docs(testURI, "app", "logs-2023")
	require.Len(t, docs, 1)
	date, _ := lookup(docs[0], "Date")
	assert.True(t, at.Equal(date.(time.Time)))
}

func TestLoggerAfterCleanupDoesNotReconnect(t *testing.T) {
	dialer := newMemDialer()
	p := newTestTarget(t, dialer, WithConfig(&conf.MongoLog{RethrowWriteErrors: true}), WithConnectionString(testURI))
	l := p.Logger()

	require.NoError(t, l.Log(log.LevelInfo, "msg", "before"))
	require.NoError(t, p.CleanupTasks())

	err := l.Log(log.LevelInfo, "msg", "after")
	assert.ErrorIs(t, err, collection.ErrClosed)
	assert.Len(t, dialer.docs(testURI, "app", "logs"), 1)
	assert.Len(t, dialer.dbs, 1)
}
