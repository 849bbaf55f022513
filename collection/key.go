package collection

import (
	"strings"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

const (
	// DefaultDatabaseName is used when neither the configuration nor the
	// connection string names a database.
	DefaultDatabaseName = "lynx"
	// DefaultCollectionName is used when no collection name is configured.
	DefaultCollectionName = "logs"
)

// Key identifies one collection handle in the cache.
type Key struct {
	ConnectionString string
	Database         string
	Collection       string
}

func (k Key) String() string {
	return k.ConnectionString + "\x00" + k.Database + "\x00" + k.Collection
}

// Normalize fills the database and collection defaults. The database falls
// back to the path of the connection string, then to DefaultDatabaseName.
func Normalize(k Key) (Key, error) {
	k.ConnectionString = strings.TrimSpace(k.ConnectionString)
	k.Database = strings.TrimSpace(k.Database)
	k.Collection = strings.TrimSpace(k.Collection)

	if k.ConnectionString == "" {
		return k, errx.Configuration("connection string is empty")
	}
	if k.Database == "" {
		cs, err := connstring.ParseAndValidate(k.ConnectionString)
		if err != nil {
			return k, errx.AsConfiguration(err, "invalid connection string")
		}
		k.Database = cs.Database
	}
	if k.Database == "" {
		k.Database = DefaultDatabaseName
	}
	if k.Collection == "" {
		k.Collection = DefaultCollectionName
	}
	return k, nil
}
