package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

var cfg *koanf.Koanf

const (
	CMD             = "cmd"
	LOG_LEVEL       = "log.level"
	LOG_PRETTY      = "log.pretty"
	CALDAV_URL      = "caldav.url"
	CALDAV_USER     = "caldav.user"
	CALDAV_PASS     = "caldav.pass"
	CALDAV_PROVIDER = "caldav.provider"
	STORE_PATH      = "store.path"
	SYNC_CRON       = "sync.cron"
	SYNC_SILENT     = "sync.silent"
	SYNC_BACKOFF    = "sync.backoff"
	HTTP_ADDR       = "http.addr"
	JOURNAL_PATH    = "journal.path"
	secretPrefix    = "secret."
	prefix          = "TASKSYNC_"
)

func Gist() *koanf.Koanf {
	if cfg == nil {
		ini(os.Args[1:])
	}
	return cfg
}

func Sprint() string {
	sb := strings.Builder{}
	sb.WriteString("cmd|required|-\n")
	sb.WriteString("log_level|optional|info\n")
	sb.WriteString("log_pretty|optional|false\n")
	sb.WriteString("caldav_url|required|-\n")
	sb.WriteString("caldav_user|required|-\n")
	sb.WriteString("caldav_pass|required|-\n")
	sb.WriteString("caldav_provider|optional|CalDAV\n")
	sb.WriteString("store_path|optional|tasksync.db\n")
	sb.WriteString("sync_cron|optional|*/5 * * * *\n")
	sb.WriteString("sync_silent|optional|false\n")
	sb.WriteString("sync_backoff|optional|2s\n")
	sb.WriteString("http_addr|optional|-\n")
	sb.WriteString("journal_path|optional|-\n")
	return sb.String()
}

// Load replaces the global configuration with one built from args and the
// TASKSYNC_ environment. Gist calls it lazily with the process arguments.
func Load(args []string) *koanf.Koanf {
	ini(args)
	return cfg
}

func ini(args []string) {
	cfg = koanf.New(".")
	cfg.Set(LOG_LEVEL, "info")
	cfg.Set(CALDAV_PROVIDER, "CalDAV")
	cfg.Set(STORE_PATH, "tasksync.db")
	cfg.Set(SYNC_CRON, "*/5 * * * *")
	cfg.Set(SYNC_BACKOFF, "2s")

	// TASKSYNC_CALDAV_URL -> caldav.url, TASKSYNC_SECRET_CALDAV -> secret.caldav
	if err := cfg.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, prefix)), "_", ".", 1)
	}), nil); err != nil {
		log.Panic().Err(err).Msg("error loading env config")
	}

	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	f.String(CMD, "", "application run mode")
	f.String(LOG_LEVEL, "info", "log level")
	f.Bool(LOG_PRETTY, false, "human readable console logs")
	f.String(CALDAV_URL, "", "caldav server url")
	f.String(CALDAV_USER, "", "caldav user")
	f.String(CALDAV_PASS, "", "caldav password")
	f.String(CALDAV_PROVIDER, "CalDAV", "sync provider name used to look up the secret")
	f.String(STORE_PATH, "tasksync.db", "local sqlite store path")
	f.String(SYNC_CRON, "*/5 * * * *", "daemon sync schedule")
	f.Bool(SYNC_SILENT, false, "suppress user facing notifications")
	f.Duration(SYNC_BACKOFF, 2*time.Second, "delay before reporting a failed connection")
	f.String(HTTP_ADDR, "", "control endpoint listen address, disabled when empty")
	f.String(JOURNAL_PATH, "", "change journal file, disabled when empty")
	f.Parse(args)
	if err := cfg.Load(posflag.Provider(f, ".", cfg), nil); err != nil {
		log.Panic().Err(err).Msg("error loading config")
	}
	lvl, err := zerolog.ParseLevel(cfg.String(LOG_LEVEL))
	if err != nil {
		log.Panic().Err(err).Msg("error parsing log level")
	}
	zerolog.SetGlobalLevel(lvl)
	if cfg.Bool(LOG_PRETTY) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	printCfg()
}

func printCfg() {
	log.Debug().Msgf("cmd: %s", cfg.String(CMD))
	log.Debug().Msgf("log_level: %s", cfg.String(LOG_LEVEL))
	log.Debug().Msgf("caldav_url: %s", cfg.String(CALDAV_URL))
	log.Debug().Msgf("caldav_user: %s", cfg.String(CALDAV_USER))
	log.Debug().Msgf("caldav_provider: %s", cfg.String(CALDAV_PROVIDER))
	log.Debug().Msgf("store_path: %s", cfg.String(STORE_PATH))
	log.Debug().Msgf("sync_cron: %s", cfg.String(SYNC_CRON))
	log.Debug().Msgf("sync_silent: %t", cfg.Bool(SYNC_SILENT))
	log.Debug().Msgf("http_addr: %s", cfg.String(HTTP_ADDR))
	log.Debug().Msgf("journal_path: %s", cfg.String(JOURNAL_PATH))
}

// Credentials reads sync credentials out of a koanf instance. Unset values
// come back as empty strings.
type Credentials struct {
	k *koanf.Koanf
}

func NewCredentials(k *koanf.Koanf) *Credentials {
	return &Credentials{k: k}
}

func (c *Credentials) URL() string {
	return c.k.String(CALDAV_URL)
}

func (c *Credentials) Username() string {
	return c.k.String(CALDAV_USER)
}

// Secret returns the secret stored for the named provider, falling back to
// the plain caldav password.
func (c *Credentials) Secret(provider string) string {
	if s := c.k.String(secretPrefix + strings.ToLower(provider)); s != "" {
		return s
	}
	return c.k.String(CALDAV_PASS)
}
