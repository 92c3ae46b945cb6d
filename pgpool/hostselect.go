package pgpool

import (
	"context"

	"github.com/mickamy/pgwire/pgconn"
	"github.com/mickamy/pgwire/pgdsn"
	"github.com/mickamy/pgwire/pgerr"
)

// selectHost picks one candidate host satisfying cfg.SessionAttrs,
// probing each in order with a throwaway connection. Open Question (b):
// prefer-standby with no reachable standby falls back to any reachable
// host rather than failing, the same way libpq documents the mode.
func selectHost(ctx context.Context, cfg Config) (pgdsn.Host, error) {
	if cfg.SessionAttrs == pgdsn.SessionAttrsAny || len(cfg.Hosts) == 1 {
		return cfg.Hosts[0], nil
	}

	var lastErr error
	for _, h := range cfg.Hosts {
		ok, err := hostSatisfies(ctx, cfg, h)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return h, nil
		}
	}

	if cfg.SessionAttrs == pgdsn.SessionAttrsPreferStandby {
		for _, h := range cfg.Hosts {
			if probeErr := probeReachable(ctx, cfg, h); probeErr == nil {
				return h, nil
			}
		}
	}

	if lastErr == nil {
		lastErr = &pgerr.PoolError{Op: "select host", Err: errNoMatchingHost}
	}
	return pgdsn.Host{}, lastErr
}

var errNoMatchingHost = poolSelectionError("no host satisfies target_session_attrs")

type poolSelectionError string

func (e poolSelectionError) Error() string { return string(e) }

// hostSatisfies probes h with a throwaway connection and checks
// pg_is_in_recovery() against the requested SessionAttrs.
func hostSatisfies(ctx context.Context, cfg Config, h pgdsn.Host) (bool, error) {
	switch cfg.SessionAttrs {
	case pgdsn.SessionAttrsReadWrite, pgdsn.SessionAttrsPrimary:
		inRecovery, err := probeInRecovery(ctx, cfg, h)
		if err != nil {
			return false, err
		}
		return !inRecovery, nil
	case pgdsn.SessionAttrsReadOnly, pgdsn.SessionAttrsStandby, pgdsn.SessionAttrsPreferStandby:
		inRecovery, err := probeInRecovery(ctx, cfg, h)
		if err != nil {
			return false, err
		}
		return inRecovery, nil
	default:
		return true, nil
	}
}

func probeInRecovery(ctx context.Context, cfg Config, h pgdsn.Host) (bool, error) {
	probeCfg := cfg.ConnConfig
	probeCfg.Host, probeCfg.Port = h.Host, h.Port

	conn, err := pgconn.Connect(ctx, probeCfg)
	if err != nil {
		return false, err
	}
	defer conn.Close(ctx)

	v, err := conn.QueryValue(ctx, "SELECT pg_is_in_recovery()")
	if err != nil {
		return false, err
	}
	inRecovery, _ := v.(bool)
	return inRecovery, nil
}

func probeReachable(ctx context.Context, cfg Config, h pgdsn.Host) error {
	probeCfg := cfg.ConnConfig
	probeCfg.Host, probeCfg.Port = h.Host, h.Port
	conn, err := pgconn.Connect(ctx, probeCfg)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}
