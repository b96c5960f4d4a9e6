package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Flag names accepted by BindFlags.
const (
	FlagConfig              = "config"
	FlagServer              = "server"
	FlagToken               = "token"
	FlagDatabase            = "db"
	FlagEncrypt             = "encrypt"
	FlagLocations           = "locations"
	FlagPageSize            = "page-size"
	FlagSyncInterval        = "sync-interval"
	FlagPruneCertified      = "prune-certified"
	FlagAdoptDeclared       = "adopt-declared"
	FlagOnlineCheckInterval = "online-check-interval"
	FlagPollInterval        = "poll-interval"
	FlagMaxAttempts         = "max-attempts"
	FlagRetryBackoff        = "retry-backoff"
	FlagRetryMaxDelay       = "retry-max-delay"
	FlagRequestTimeout      = "request-timeout"
	FlagHTTPAddr            = "http-addr"
	FlagLogLevel            = "log-level"
	FlagLogFormat           = "log-format"
)

// BindFlags registers the configuration flags on fs. Defaults shown in the
// help come from LoadDefaults; only flags given on the command line
// override other sources.
func BindFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "path to a JSON config file")
	fs.StringP(FlagServer, "a", d.ServerEndpointAddr, "address and port of the registration server")
	fs.String(FlagToken, "", "access token sent to the server")
	fs.String(FlagDatabase, d.DatabasePath, "path of the local SQLite database")
	fs.Bool(FlagEncrypt, d.Encrypt, "encrypt stored declarations with a passphrase")
	fs.StringSlice(FlagLocations, nil, "office location ids used to filter the tabs")
	fs.Int(FlagPageSize, d.PageSize, "rows fetched per tab")
	fs.Duration(FlagSyncInterval, d.SyncInterval, "interval between sync cycles")
	fs.Bool(FlagPruneCertified, d.PruneCertified, "remove certified declarations from the device after sync")
	fs.Bool(FlagAdoptDeclared, d.AdoptDeclared, "keep declared and validated server declarations on the device")
	fs.DurationP(FlagOnlineCheckInterval, "i", d.OnlineCheckInterval, "online check interval")
	fs.Duration(FlagPollInterval, d.PollInterval, "queue poll interval")
	fs.Int(FlagMaxAttempts, d.MaxAttempts, "attempts before an operation needs a manual retry")
	fs.Duration(FlagRetryBackoff, d.RetryBackoff, "delay before the first retry")
	fs.Duration(FlagRetryMaxDelay, d.RetryMaxDelay, "upper bound of the retry delay")
	fs.Duration(FlagRequestTimeout, d.RequestTimeout, "timeout of one remote call")
	fs.String(FlagHTTPAddr, d.HTTPAddr, "listen address of the local API")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(FlagLogFormat, d.LogFormat, "log format (text, json)")
}

// parseFlags copies the flags of fs that were set on the command line.
func parseFlags(cfg *Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = applyFlag(cfg, fs, f.Name)
	})
	return err
}

func applyFlag(cfg *Config, fs *pflag.FlagSet, name string) error {
	var err error
	str := func(dst *string) { *dst, err = fs.GetString(name) }
	dur := func(dst *time.Duration) { *dst, err = fs.GetDuration(name) }
	num := func(dst *int) { *dst, err = fs.GetInt(name) }
	flag := func(dst *bool) { *dst, err = fs.GetBool(name) }

	switch name {
	case FlagServer:
		str(&cfg.ServerEndpointAddr)
	case FlagToken:
		str(&cfg.AccessToken)
	case FlagDatabase:
		str(&cfg.DatabasePath)
	case FlagEncrypt:
		flag(&cfg.Encrypt)
	case FlagLocations:
		cfg.LocationIDs, err = fs.GetStringSlice(name)
	case FlagPageSize:
		num(&cfg.PageSize)
	case FlagSyncInterval:
		dur(&cfg.SyncInterval)
	case FlagPruneCertified:
		flag(&cfg.PruneCertified)
	case FlagAdoptDeclared:
		flag(&cfg.AdoptDeclared)
	case FlagOnlineCheckInterval:
		dur(&cfg.OnlineCheckInterval)
	case FlagPollInterval:
		dur(&cfg.PollInterval)
	case FlagMaxAttempts:
		num(&cfg.MaxAttempts)
	case FlagRetryBackoff:
		dur(&cfg.RetryBackoff)
	case FlagRetryMaxDelay:
		dur(&cfg.RetryMaxDelay)
	case FlagRequestTimeout:
		dur(&cfg.RequestTimeout)
	case FlagHTTPAddr:
		str(&cfg.HTTPAddr)
	case FlagLogLevel:
		str(&cfg.LogLevel)
	case FlagLogFormat:
		str(&cfg.LogFormat)
	}
	if err != nil {
		return fmt.Errorf("flag --%s: %w", name, err)
	}
	return nil
}
