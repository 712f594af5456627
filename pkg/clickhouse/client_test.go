package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{}
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(9000),
		WithDatabase("spi"),
		WithCredentials("svc", "p@ss"),
		WithTimeouts(2*time.Second, 5*time.Second, 5*time.Second),
		WithMaxExecutionTime(30 * time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/spi", u.Path)
	assert.Equal(t, "svc", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "2s", q.Get("dial_timeout"))
	assert.Equal(t, "5s", q.Get("read_timeout"))
	assert.Equal(t, "30", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))
}

func TestBuildDSNHTTP(t *testing.T) {
	cfg := ClientConfig{Host: "ch.local", Port: 8123, Database: "spi"}
	WithHTTP(true)(&cfg)

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Empty(t, u.RawQuery)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := defaultConfig()
	assert.EqualError(t, cfg.validate(), "host is required")

	WithHost("ch.local")(&cfg)
	require.NoError(t, cfg.validate())

	WithMaxConnections(2, 4)(&cfg)
	assert.Error(t, cfg.validate())

	WithMaxConnections(4, 2)(&cfg)
	WithPort(70000)(&cfg)
	assert.Error(t, cfg.validate())
}

func TestTimeoutsKeepDefaultsForZero(t *testing.T) {
	cfg := defaultConfig()
	WithTimeouts(0, time.Minute, 0)(&cfg)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, time.Minute, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
}
