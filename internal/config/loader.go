// Package config loads the reservation service configuration from the
// process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-reservation/internal/application"
)

// Config captures environment driven configuration values for the
// reservation service.
type Config struct {
	HTTPPort      int
	SQLitePath    string
	SessionSecret string
	SessionTTL    time.Duration
	AMQPURL       string
	// CombinedRooms maps a combined parent room name to its child room
	// names. Cancelling the parent's reservation cancels identically timed
	// reservations in the children.
	CombinedRooms application.CombinedRooms
}

// Load parses configuration values from the current process environment.
//
// The loader applies sensible defaults for optional fields while validating
// required values and reporting localized error messages for missing entries.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:   8080,
		SQLitePath: "reservations.db",
		SessionTTL: 24 * time.Hour,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("RESERVE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "RESERVE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if path := strings.TrimSpace(os.Getenv("RESERVE_SQLITE_PATH")); path != "" {
		cfg.SQLitePath = path
	}

	if secret := strings.TrimSpace(os.Getenv("RESERVE_SESSION_SECRET")); secret == "" {
		missing = append(missing, "RESERVE_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("RESERVE_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "RESERVE_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("RESERVE_AMQP_URL"))

	if raw := strings.TrimSpace(os.Getenv("RESERVE_COMBINED_ROOMS")); raw != "" {
		combined, err := parseCombinedRooms(raw)
		if err != nil {
			invalid = append(invalid, "RESERVE_COMBINED_ROOMS")
		} else {
			cfg.CombinedRooms = combined
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseCombinedRooms reads the "Parent=ChildA|ChildB;Other=ChildC" form.
func parseCombinedRooms(raw string) (application.CombinedRooms, error) {
	combined := make(application.CombinedRooms)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid combined room entry %q", entry)
		}
		parent := strings.TrimSpace(parts[0])
		if parent == "" {
			return nil, fmt.Errorf("invalid combined room entry %q", entry)
		}
		var children []string
		for _, child := range strings.Split(parts[1], "|") {
			child = strings.TrimSpace(child)
			if child != "" {
				children = append(children, child)
			}
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("combined room %q has no children", parent)
		}
		combined[parent] = children
	}
	if len(combined) == 0 {
		return nil, fmt.Errorf("no combined room entries")
	}
	return combined, nil
}
