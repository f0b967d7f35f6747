package clickhouse

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config describes the ClickHouse server holding candles and flow signals.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// HTTP selects the HTTP interface (8123) instead of the native protocol (9000).
	HTTP     bool
	Compress bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	DialTimeout time.Duration
	ReadTimeout time.Duration
	// MaxExecutionTime is enforced by the server, in whole seconds.
	MaxExecutionTime time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Config)

func defaultConfig() Config {
	return Config{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
	}
}

func (c Config) validate() error {
	switch {
	case c.Host == "":
		return errors.New("clickhouse: host is required")
	case c.Port <= 0:
		return errors.New("clickhouse: port must be positive")
	case c.Database == "":
		return errors.New("clickhouse: database is required")
	}
	return nil
}

// DSN renders the config as a clickhouse-go connection string.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.HTTP {
		u.Scheme = "http"
	}

	q := url.Values{}
	if c.DialTimeout > 0 {
		q.Set("dial_timeout", c.DialTimeout.String())
	}
	if c.ReadTimeout > 0 {
		q.Set("read_timeout", c.ReadTimeout.String())
	}
	if s := int(c.MaxExecutionTime / time.Second); s > 0 {
		q.Set("max_execution_time", strconv.Itoa(s))
	}
	if c.Compress {
		q.Set("compress", "lz4")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// WithHost sets the server host.
func WithHost(host string) ClientOption { return func(c *Config) { c.Host = host } }

// WithPort sets the server port. Zero keeps the default.
func WithPort(port int) ClientOption {
	return func(c *Config) {
		if port > 0 {
			c.Port = port
		}
	}
}

// WithDatabase sets the database the candle and signal tables live in.
func WithDatabase(database string) ClientOption { return func(c *Config) { c.Database = database } }

func WithCredentials(user, password string) ClientOption {
	return func(c *Config) {
		if user != "" {
			c.User = user
		}
		c.Password = password
	}
}

// WithMaxConnections bounds the sql.DB pool. Every live channel polls through it.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// WithTimeouts sets dial and read timeouts. Zero values keep the defaults.
func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *Config) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

func WithHTTP(useHTTP bool) ClientOption { return func(c *Config) { c.HTTP = useHTTP } }

// WithCompression enables LZ4 block compression on the wire.
func WithCompression(on bool) ClientOption { return func(c *Config) { c.Compress = on } }

func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *Config) { c.MaxExecutionTime = d }
}
