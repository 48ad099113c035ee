package dbclient

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"listbind/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// schemaSampleSize is how many documents are read to infer a collection's fields.
const schemaSampleSize = 20

// mongoSource implements Source for MongoDB.
type mongoSource struct {
	client *mongo.Client
	dbName string
}

// buildMongoURI returns the connection URI and database name for conn.
func buildMongoURI(conn *domain.DatabaseConnection, password string) (string, string) {
	var uri string

	// A full connection string (Atlas mongodb+srv:// or standard mongodb://) is used as is.
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri = conn.Host
		// Replace <password> placeholder commonly found in Atlas connection strings
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
	} else {
		port := conn.Port
		if port == 0 {
			port = 27017
		}
		if conn.Username != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
		}

		// Extra carries authSource, replicaSet, etc.
		if len(conn.Extra) > 0 {
			keys := make([]string, 0, len(conn.Extra))
			for k := range conn.Extra {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			params := make([]string, 0, len(keys))
			for _, k := range keys {
				params = append(params, k+"="+conn.Extra[k])
			}
			uri += "/?" + strings.Join(params, "&")
		}
	}

	dbName := conn.Database
	if dbName == "" {
		dbName = databaseFromURI(uri)
	}
	return uri, dbName
}

// databaseFromURI extracts the path database of a mongodb URI, "test" when absent.
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if atIdx := strings.Index(rest, "@"); atIdx != -1 {
		rest = rest[atIdx+1:]
	}
	if slashIdx := strings.Index(rest, "/"); slashIdx != -1 {
		path := rest[slashIdx+1:]
		if qIdx := strings.Index(path, "?"); qIdx != -1 {
			path = path[:qIdx]
		}
		if path != "" {
			return path
		}
	}
	return "test"
}

func newMongoSource(conn *domain.DatabaseConnection, password string) (*mongoSource, error) {
	uri, dbName := buildMongoURI(conn, password)

	// Mask password in URI for logging
	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	log.Printf("[MONGO] connecting to %s (database %s)", logURI, dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoSource{client: client, dbName: dbName}, nil
}

func (m *mongoSource) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoSource) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(collections)

	schema := &SchemaInfo{}
	for _, name := range collections {
		cols, err := m.sampleColumns(ctx, name)
		if err != nil {
			log.Printf("[MONGO] sample %s: %v", name, err)
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: name, Columns: cols})
	}
	return schema, nil
}

// sampleColumns infers a collection's fields from its first documents:
// _id first, then alphabetical.
func (m *mongoSource) sampleColumns(ctx context.Context, collection string) ([]ColumnInfo, error) {
	cursor, err := m.client.Database(m.dbName).Collection(collection).
		Find(ctx, bson.M{}, options.Find().SetLimit(schemaSampleSize))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	types := map[string]string{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		for k, v := range doc {
			if _, seen := types[k]; !seen || types[k] == "null" {
				types[k] = bsonTypeName(v)
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	cols := make([]ColumnInfo, 0, len(types))
	for name, typ := range types {
		cols = append(cols, ColumnInfo{Name: name, Type: typ})
	}
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Name == "_id" {
			return true
		}
		if cols[j].Name == "_id" {
			return false
		}
		return cols[i].Name < cols[j].Name
	})
	return cols, nil
}

// bsonTypeName names a decoded value in the vocabulary FieldTypeFor understands.
func bsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int32, int64, float64, bson.Decimal128:
		return "double"
	case bson.A:
		return "array"
	case bson.DateTime:
		return "date"
	default:
		return "string"
	}
}

// ── domain.ListStore ───────────────────────────────────────

func (m *mongoSource) ListLists(ctx context.Context) ([]domain.List, error) {
	schema, err := m.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	lists := make([]domain.List, 0, len(schema.Tables))
	for _, t := range schema.Tables {
		lists = append(lists, listFromTable(t))
	}
	return lists, nil
}

func (m *mongoSource) GetList(ctx context.Context, title string) (*domain.List, error) {
	schema, err := m.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	t, err := findTable(schema, title)
	if err != nil {
		return nil, err
	}
	l := listFromTable(t)
	return &l, nil
}

func (m *mongoSource) GetItems(ctx context.Context, listID, orderBy string) ([]domain.Item, error) {
	l, err := m.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cursor, err := m.client.Database(m.dbName).Collection(l.Title).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var items []domain.Item
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		it := domain.Item{ListID: l.Title, Fields: l.Fields, Data: make(map[string]any, len(doc))}
		for k, v := range doc {
			it.Data[k] = plainValue(v)
		}
		it.ID = cast.ToString(it.Data["_id"])
		if n, ok := it.SortKey(); ok {
			it.SortOrder = n
		}
		items = append(items, it)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}

	domain.SortItemsBy(items, orderBy)
	return items, nil
}

func (m *mongoSource) GetItemsFiltered(ctx context.Context, listID, field, contains string) ([]domain.Item, error) {
	items, err := m.GetItems(ctx, listID, "")
	if err != nil {
		return nil, err
	}
	return filterItems(items, field, contains), nil
}

// plainValue converts BSON-specific values to plain Go values.
func plainValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.Decimal128:
		return val.String()
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = plainValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = plainValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	default:
		return val
	}
}

func (m *mongoSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
