package collection

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

type staticDialer struct{ db Database }

func (d staticDialer) Database(context.Context, string, string) (Database, error) { return d.db, nil }
func (d staticDialer) Close(context.Context) error                                { return nil }

func TestMongoDatabase(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("has collection", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "logs"}, {Key: "type", Value: "collection"}}))
		ok, err := (&mongoDatabase{db: mt.DB}).HasCollection(context.Background(), "logs")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("missing collection", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.$cmd.listCollections", mtest.FirstBatch))
		ok, err := (&mongoDatabase{db: mt.DB}).HasCollection(context.Background(), "logs")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("create capped", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		err := (&mongoDatabase{db: mt.DB}).CreateCapped(context.Background(), "logs", 1<<20, 500)
		assert.NoError(mt, err)
	})

	mt.Run("create races another writer", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    codeNamespaceExists,
			Name:    "NamespaceExists",
			Message: "collection already exists",
		}))
		err := (&mongoDatabase{db: mt.DB}).CreateCapped(context.Background(), "logs", 1<<20, 0)
		assert.NoError(mt, err)
	})

	mt.Run("create fails", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))
		err := (&mongoDatabase{db: mt.DB}).CreateCapped(context.Background(), "logs", 1<<20, 0)
		assert.Error(mt, err)
	})
}

func TestMongoHandle(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert many", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		h := (&mongoDatabase{db: mt.DB}).Collection("logs")
		err := h.InsertMany(context.Background(), []bson.D{
			{{Key: "Message", Value: "a"}},
			{{Key: "Message", Value: "b"}},
		})
		assert.NoError(mt, err)
	})

	mt.Run("insert one write error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		h := (&mongoDatabase{db: mt.DB}).Collection("logs")
		err := h.InsertOne(context.Background(), bson.D{{Key: "Message", Value: "a"}})
		assert.Error(mt, err)
		assert.False(mt, errx.IsConfiguration(err))
	})
}

func TestCacheOverDriverCreatesCapped(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("resolve then insert", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "db.$cmd.listCollections", mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)
		c := New(staticDialer{db: &mongoDatabase{db: mt.DB}}, WithCapped(1<<20, 100))
		h, err := c.Resolve(context.Background(), Key{ConnectionString: "mongodb://mock", Collection: "logs"})
		require.NoError(mt, err)
		assert.NoError(mt, h.InsertOne(context.Background(), bson.D{{Key: "Message", Value: "hi"}}))
	})
}

func TestMongoDialerInvalidURI(t *testing.T) {
	d := NewMongoDialer()
	_, err := d.Database(context.Background(), "postgres://nope", "db")
	require.Error(t, err)
	assert.True(t, errx.IsConfiguration(err))
	assert.NoError(t, d.Close(context.Background()))
}

func TestMongoDialerSharesClient(t *testing.T) {
	d := NewMongoDialer()
	ctx := context.Background()
	_, err := d.Database(ctx, "mongodb://127.0.0.1:1", "a")
	require.NoError(t, err)
	_, err = d.Database(ctx, "mongodb://127.0.0.1:1", "b")
	require.NoError(t, err)
	assert.Len(t, d.clients, 1)
	assert.NoError(t, d.Close(ctx))
	assert.Len(t, d.clients, 0)
}

func TestDriverSink(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	s := driverSink{zl: &zl}

	s.Info(1, "command started", "commandName", "insert")
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), `"commandName":"insert"`)

	buf.Reset()
	s.Info(2, "heartbeat")
	assert.Contains(t, buf.String(), `"level":"debug"`)

	buf.Reset()
	s.Error(errors.New("boom"), "command failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestMongoDialerRejectsDatabaseAfterClose(t *testing.T) {
	d := NewMongoDialer()
	ctx := context.Background()
	_, err := d.Database(ctx, "mongodb://127.0.0.1:1", "a")
	require.NoError(t, err)
	require.NoError(t, d.Close(ctx))

	_, err = d.Database(ctx, "mongodb://127.0.0.1:1", "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, d.clients, 0)
}
