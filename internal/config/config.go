// Package config loads mwlist settings from a .env file and MEDIAWIKI_*
// environment variables. Variables set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds MediaWiki connection settings
type Config struct {
	// APIURL is the wiki API endpoint (e.g., https://wiki.example.com/w/api.php)
	APIURL string

	// UserAgent identifies the tool to the wiki; the library's own user
	// agent is appended to it.
	UserAgent string

	// Username and Password of a bot password (optional)
	Username string
	Password string

	// Timeout for HTTP requests; zero disables it
	Timeout time.Duration

	// MaxRetries for lagged or throttled requests
	MaxRetries int

	// Maxlag is the maxlag parameter in seconds; zero disables it
	Maxlag int
}

// Load reads the given .env files (".env" when none are given) and the
// environment. Missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fileEnv := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileEnv[key])
	}

	cfg := &Config{
		APIURL:     get("MEDIAWIKI_URL"),
		UserAgent:  get("MEDIAWIKI_USER_AGENT"),
		Username:   get("MEDIAWIKI_USERNAME"),
		Password:   get("MEDIAWIKI_PASSWORD"),
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}

	if t := get("MEDIAWIKI_TIMEOUT"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid MEDIAWIKI_TIMEOUT %q: %w", t, err)
		}
		cfg.Timeout = d
	}
	if r := get("MEDIAWIKI_MAX_RETRIES"); r != "" {
		n, err := strconv.Atoi(r)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MEDIAWIKI_MAX_RETRIES %q", r)
		}
		cfg.MaxRetries = n
	}
	if m := get("MEDIAWIKI_MAXLAG"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MEDIAWIKI_MAXLAG %q", m)
		}
		cfg.Maxlag = n
	}
	return cfg, nil
}

// Validate checks that the settings are usable for connecting to a wiki.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("the wiki API URL is required (MEDIAWIKI_URL or --api)")
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.New("username and password must be given together")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid retry count %d", c.MaxRetries)
	}
	if c.Maxlag < 0 {
		return fmt.Errorf("invalid maxlag %d: must not be negative", c.Maxlag)
	}
	return nil
}

// HasCredentials returns true if authentication credentials are configured
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
