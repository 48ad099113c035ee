package domain

// DatabaseDriver represents the type of database engine behind an external list source.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConnection holds the metadata for connecting to an external list source.
// The password is resolved separately through a SecretStore.
type DatabaseConnection struct {
	Name        string            `json:"name" yaml:"name"`
	Driver      DatabaseDriver    `json:"driver" yaml:"driver"`
	Host        string            `json:"host" yaml:"host"`         // hostname, URI (mongodb) or file path (sqlite)
	Port        int               `json:"port" yaml:"port"`         // 0 for driver default
	Database    string            `json:"database" yaml:"database"` // db name or empty for sqlite
	Username    string            `json:"username" yaml:"username"`
	SSLMode     string            `json:"sslMode" yaml:"ssl_mode"`
	PasswordKey string            `json:"-" yaml:"password_key"` // secret store key
	Extra       map[string]string `json:"extra,omitempty" yaml:"extra"`
}
