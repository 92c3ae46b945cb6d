// Package pgdsn parses connection configuration from a postgres:// URL,
// a libpq-style keyword/value DSN string, or the standard PG* environment
// variables, the same surface libpq itself accepts. The URL branch is
// grounded on the url.Parse-based ParseURI found in the jackc/pgx
// reference source included in the example corpus; keyword/value parsing
// and environment fallback have no equivalent in the teacher (sql-tap
// dials a fixed upstream address from its own config) and are built from
// the behavior documented in PostgreSQL's own connection-string handling.
package pgdsn

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/jackc/pgpassfile"
)

// SessionAttrs selects which nodes in a multi-host DSN are acceptable
// targets, per libpq's target_session_attrs.
type SessionAttrs string

const (
	SessionAttrsAny            SessionAttrs = "any"
	SessionAttrsReadWrite      SessionAttrs = "read-write"
	SessionAttrsReadOnly       SessionAttrs = "read-only"
	SessionAttrsPrimary        SessionAttrs = "primary"
	SessionAttrsStandby        SessionAttrs = "standby"
	SessionAttrsPreferStandby  SessionAttrs = "prefer-standby"
)

// SSLMode selects how (and whether) TLS is negotiated on the connection,
// per libpq's sslmode.
type SSLMode string

const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeAllow      SSLMode = "allow"
	SSLModePrefer     SSLMode = "prefer"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

// Host is one entry of a possibly multi-host DSN (host=a,b port=1,2).
type Host struct {
	Host string
	Port uint16
}

// Config is the fully-resolved result of parsing a DSN: a connection
// pool or connection should need nothing else to open a socket and
// perform startup/auth.
type Config struct {
	Hosts          []Host
	Database       string
	User           string
	Password       string
	SSLMode        SSLMode
	SessionAttrs   SessionAttrs
	RuntimeParams  map[string]string // sent verbatim in the StartupMessage
	ConnectTimeout int               // seconds, 0 means no explicit timeout
}

// Parse accepts either a postgres:// / postgresql:// URL or a
// space-separated keyword=value DSN, falling back to PG* environment
// variables and the OS user for anything neither form specifies.
func Parse(dsn string) (*Config, error) {
	var cfg *Config
	var err error

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		cfg, err = parseURL(dsn)
	case dsn == "":
		cfg = &Config{RuntimeParams: map[string]string{}}
	default:
		cfg, err = parseKeywordValue(dsn)
	}
	if err != nil {
		return nil, err
	}

	applyEnvironmentDefaults(cfg)

	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []Host{{Host: "localhost", Port: 5432}}
	}
	if cfg.User == "" {
		cfg.User = currentOSUser()
	}
	if cfg.Database == "" {
		cfg.Database = cfg.User
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = SSLModePrefer
	}
	if cfg.SessionAttrs == "" {
		cfg.SessionAttrs = SessionAttrsAny
	}
	if cfg.Password == "" {
		cfg.Password = lookupPassfile(cfg)
	}

	return cfg, nil
}

func parseURL(dsn string) (*Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgdsn: parse URL: %w", err)
	}

	cfg := &Config{RuntimeParams: map[string]string{}}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}

	for _, hostport := range strings.Split(u.Host, ",") {
		if hostport == "" {
			continue
		}
		cfg.Hosts = append(cfg.Hosts, splitHostPort(hostport))
	}

	cfg.Database = strings.TrimPrefix(u.Path, "/")

	q := u.Query()
	if mode := q.Get("sslmode"); mode != "" {
		cfg.SSLMode = SSLMode(mode)
	}
	if tsa := q.Get("target_session_attrs"); tsa != "" {
		cfg.SessionAttrs = SessionAttrs(tsa)
	}
	if ct := q.Get("connect_timeout"); ct != "" {
		if n, err := strconv.Atoi(ct); err == nil {
			cfg.ConnectTimeout = n
		}
	}
	for k, vs := range q {
		switch k {
		case "sslmode", "target_session_attrs", "connect_timeout":
			continue
		default:
			if len(vs) > 0 {
				cfg.RuntimeParams[k] = vs[0]
			}
		}
	}

	return cfg, nil
}

func splitHostPort(hostport string) Host {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Host{Host: hostport, Port: 5432}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		port = 5432
	}
	return Host{Host: host, Port: uint16(port)}
}

func parseKeywordValue(dsn string) (*Config, error) {
	cfg := &Config{RuntimeParams: map[string]string{}}
	fields, err := splitKeywordValueFields(dsn)
	if err != nil {
		return nil, err
	}

	var hosts, ports string
	for k, v := range fields {
		switch k {
		case "host":
			hosts = v
		case "port":
			ports = v
		case "dbname":
			cfg.Database = v
		case "user":
			cfg.User = v
		case "password":
			cfg.Password = v
		case "sslmode":
			cfg.SSLMode = SSLMode(v)
		case "target_session_attrs":
			cfg.SessionAttrs = SessionAttrs(v)
		case "connect_timeout":
			if n, err := strconv.Atoi(v); err == nil {
				cfg.ConnectTimeout = n
			}
		default:
			cfg.RuntimeParams[k] = v
		}
	}

	hostList := splitNonEmpty(hosts, ",")
	portList := splitNonEmpty(ports, ",")
	for i, h := range hostList {
		port := uint16(5432)
		if i < len(portList) {
			if p, err := strconv.ParseUint(portList[i], 10, 16); err == nil {
				port = uint16(p)
			}
		} else if len(portList) == 1 {
			if p, err := strconv.ParseUint(portList[0], 10, 16); err == nil {
				port = uint16(p)
			}
		}
		cfg.Hosts = append(cfg.Hosts, Host{Host: h, Port: port})
	}

	return cfg, nil
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

// splitKeywordValueFields tokenizes libpq's "key=value key2='quoted value'"
// format, honoring single-quoted values with backslash escapes.
func splitKeywordValueFields(dsn string) (map[string]string, error) {
	fields := make(map[string]string)
	i := 0
	n := len(dsn)
	for i < n {
		for i < n && (dsn[i] == ' ' || dsn[i] == '\t') {
			i++
		}
		if i >= n {
			break
		}
		keyStart := i
		for i < n && dsn[i] != '=' {
			i++
		}
		if i >= n {
			return nil, fmt.Errorf("pgdsn: malformed keyword/value DSN near %q", dsn[keyStart:])
		}
		key := dsn[keyStart:i]
		i++ // skip '='

		var value strings.Builder
		if i < n && dsn[i] == '\'' {
			i++
			for i < n {
				if dsn[i] == '\\' && i+1 < n {
					value.WriteByte(dsn[i+1])
					i += 2
					continue
				}
				if dsn[i] == '\'' {
					i++
					break
				}
				value.WriteByte(dsn[i])
				i++
			}
		} else {
			for i < n && dsn[i] != ' ' && dsn[i] != '\t' {
				value.WriteByte(dsn[i])
				i++
			}
		}
		fields[key] = value.String()
	}
	return fields, nil
}

func applyEnvironmentDefaults(cfg *Config) {
	if len(cfg.Hosts) == 0 {
		if h := os.Getenv("PGHOST"); h != "" {
			port := uint16(5432)
			if p := os.Getenv("PGPORT"); p != "" {
				if n, err := strconv.ParseUint(p, 10, 16); err == nil {
					port = uint16(n)
				}
			}
			for _, h := range strings.Split(h, ",") {
				cfg.Hosts = append(cfg.Hosts, Host{Host: h, Port: port})
			}
		}
	}
	if cfg.Database == "" {
		cfg.Database = os.Getenv("PGDATABASE")
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("PGUSER")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("PGPASSWORD")
	}
	if cfg.SSLMode == "" {
		if m := os.Getenv("PGSSLMODE"); m != "" {
			cfg.SSLMode = SSLMode(m)
		}
	}
	if cfg.SessionAttrs == "" {
		if a := os.Getenv("PGTARGETSESSIONATTRS"); a != "" {
			cfg.SessionAttrs = SessionAttrs(a)
		}
	}
}

func currentOSUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

// lookupPassfile consults ~/.pgpass (or $PGPASSFILE) for a matching
// entry, the same fallback libpq performs when no password was supplied
// any other way.
func lookupPassfile(cfg *Config) string {
	path := os.Getenv("PGPASSFILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = home + string(os.PathSeparator) + ".pgpass"
	}

	pf, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		return ""
	}

	for _, h := range cfg.Hosts {
		entry := pf.FindCredentials(h.Host, strconv.Itoa(int(h.Port)), cfg.Database, cfg.User)
		if entry != nil {
			return entry.Password
		}
	}
	return ""
}
