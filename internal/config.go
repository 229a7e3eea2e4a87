package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/datalib/internal/attachments"
	"github.com/starford/datalib/internal/auth"
	"github.com/starford/datalib/internal/store"
)

// Attachment backends.
const (
	AttachmentsFS    = "fs"
	AttachmentsMinIO = "minio"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Attachments.Validate(); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the database backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
	)
}

// Store returns the store configuration.
func (c *DatabaseConfig) Store() store.Config {
	return store.Config{Driver: c.Driver, DSN: c.DSN, MaxOpenConns: c.MaxOpenConns}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how callers are identified:
//   - "disabled" (default): no credentials; every request acts as DefaultUser,
//     or anonymously when DefaultUser is empty.
//   - "token": Bearer tokens listed in Users map to user ids.
type AuthConfig struct {
	Mode        string           `yaml:"mode"`
	DefaultUser string           `yaml:"default_user"`
	Users       []AuthUserConfig `yaml:"users"`
}

// AuthUserConfig binds a bearer token to a user id.
type AuthUserConfig struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = string(auth.ModeDisabled)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(string(auth.ModeDisabled), string(auth.ModeToken))),
		validation.Field(&c.Users, validation.When(c.Mode == string(auth.ModeToken), validation.Required)),
	); err != nil {
		return err
	}
	_, err := c.Resolver()
	return err
}

// Resolver builds the identity resolver described by c.
func (c *AuthConfig) Resolver() (*auth.Resolver, error) {
	users := make([]auth.User, 0, len(c.Users))
	for _, u := range c.Users {
		users = append(users, auth.User{Token: u.Token, UserID: u.UserID})
	}
	return auth.NewResolver(auth.Mode(c.Mode), c.DefaultUser, users)
}

// AttachmentsConfig selects where attachment files are stored.
type AttachmentsConfig struct {
	Backend         string      `yaml:"backend"`
	Path            string      `yaml:"path"`
	PublicURLPrefix string      `yaml:"public_url_prefix"`
	MinIO           MinIOConfig `yaml:"minio"`
}

// MinIOConfig holds S3-compatible bucket settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate validates the attachments configuration.
func (c *AttachmentsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(AttachmentsFS, AttachmentsMinIO)),
		validation.Field(&c.Path, validation.When(c.Backend == AttachmentsFS, validation.Required)),
		validation.Field(&c.PublicURLPrefix, validation.Required),
	); err != nil {
		return err
	}
	if c.Backend != AttachmentsMinIO {
		return nil
	}
	m := &c.MinIO
	return validation.ValidateStruct(m,
		validation.Field(&m.Endpoint, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.AccessKey, validation.Required),
		validation.Field(&m.SecretKey, validation.Required),
		validation.Field(&m.Bucket, validation.Required, validation.Length(3, 63)),
	)
}

// MinIO returns the attachments client configuration.
func (c *MinIOConfig) MinIO() attachments.MinIOConfig {
	return attachments.MinIOConfig{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		UseSSL:    c.UseSSL,
	}
}

// MCPConfig holds the MCP server settings.
type MCPConfig struct {
	// UserID is the identity every MCP tool call runs as.
	UserID string `yaml:"user_id"`
}

// Validate validates the MCP configuration. It is only checked by the
// mcp command.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserID, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    "./datalib.db",
		},
		Auth: AuthConfig{
			Mode: string(auth.ModeDisabled),
		},
		Attachments: AttachmentsConfig{
			Backend:         AttachmentsFS,
			Path:            "./attachments",
			PublicURLPrefix: "/attachments",
		},
	}
}
