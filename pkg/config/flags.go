package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagConfig           = "config"
	FlagSecret           = "secret"
	FlagSecretFile       = "secret-file"
	FlagPullAddr         = "pull-addr"
	FlagPushAddr         = "push-addr"
	FlagEchoAddr         = "echo-addr"
	FlagTLSCert          = "tls-cert"
	FlagTLSKey           = "tls-key"
	FlagTLSClientCA      = "tls-client-ca"
	FlagTLSSelfSigned    = "tls-self-signed"
	FlagTLSDir           = "tls-dir"
	FlagHandshakeTimeout = "handshake-timeout"
	FlagChallengeMaxAge  = "challenge-max-age"
	FlagMaxMessageSize   = "max-message-size"
	FlagMaxSessions      = "max-sessions"
	FlagStorageDir       = "storage-dir"
	FlagProtocolLog      = "protocol-log"
	FlagMDNS             = "mdns"
	FlagMDNSName         = "mdns-name"
	FlagSuggestionPolicy = "suggestion-policy"
	FlagLogLevel         = "log-level"
	FlagShutdownTimeout  = "shutdown-timeout"
)

// AddFlags registers the configuration flags on flagSet with the values
// of Default() as flag defaults.
func AddFlags(flagSet *pflag.FlagSet) {
	d := Default()
	flagSet.String(FlagConfig, "", "configuration file (.yaml, .yml or .toml)")
	flagSet.String(FlagSecret, "", "shared secret for the pull handshake")
	flagSet.String(FlagSecretFile, "", "file containing the shared secret")
	flagSet.String(FlagPullAddr, d.PullAddress, "pull listener address (empty disables)")
	flagSet.String(FlagPushAddr, d.PushAddress, "push intake address (empty disables)")
	flagSet.String(FlagEchoAddr, d.EchoAddress, "echo probe address (empty disables)")
	flagSet.String(FlagTLSCert, "", "TLS certificate for the pull listener")
	flagSet.String(FlagTLSKey, "", "TLS private key for the pull listener")
	flagSet.String(FlagTLSClientCA, "", "CA bundle for verifying client certificates")
	flagSet.Bool(FlagTLSSelfSigned, d.TLSSelfSigned, "serve the pull listener with a generated identity")
	flagSet.String(FlagTLSDir, d.TLSDir, "directory for the generated identity")
	flagSet.Duration(FlagHandshakeTimeout, d.HandshakeTimeout, "handshake response timeout")
	flagSet.Duration(FlagChallengeMaxAge, d.ChallengeMaxAge, "maximum challenge age (0 disables)")
	flagSet.String(FlagMaxMessageSize, d.MaxMessageSize.String(), "maximum message size")
	flagSet.Int64(FlagMaxSessions, d.MaxSessions, "maximum concurrent pull sessions (0 = unbounded)")
	flagSet.String(FlagStorageDir, d.StorageDir, "directory for decoded images")
	flagSet.String(FlagProtocolLog, "", "protocol capture file (.rlog)")
	flagSet.Bool(FlagMDNS, d.MDNS, "advertise listeners via mDNS")
	flagSet.String(FlagMDNSName, d.MDNSName, "mDNS instance name")
	flagSet.String(FlagSuggestionPolicy, d.SuggestionPolicy, "next-command policy: random, round-robin, none")
	flagSet.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	flagSet.Duration(FlagShutdownTimeout, d.ShutdownTimeout, "time to wait for sessions on shutdown")
}

// ApplyFlags overrides c with every flag the user set explicitly.
func (c *Config) ApplyFlags(flagSet *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagSecret:           &c.Secret,
		FlagSecretFile:       &c.SecretFile,
		FlagPullAddr:         &c.PullAddress,
		FlagPushAddr:         &c.PushAddress,
		FlagEchoAddr:         &c.EchoAddress,
		FlagTLSCert:          &c.TLSCert,
		FlagTLSKey:           &c.TLSKey,
		FlagTLSClientCA:      &c.TLSClientCA,
		FlagTLSDir:           &c.TLSDir,
		FlagStorageDir:       &c.StorageDir,
		FlagProtocolLog:      &c.ProtocolLog,
		FlagMDNSName:         &c.MDNSName,
		FlagSuggestionPolicy: &c.SuggestionPolicy,
		FlagLogLevel:         &c.LogLevel,
	}
	for name, dst := range strs {
		if !flagSet.Changed(name) {
			continue
		}
		v, err := flagSet.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		FlagHandshakeTimeout: &c.HandshakeTimeout,
		FlagChallengeMaxAge:  &c.ChallengeMaxAge,
		FlagShutdownTimeout:  &c.ShutdownTimeout,
	}
	for name, dst := range durations {
		if !flagSet.Changed(name) {
			continue
		}
		v, err := flagSet.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flagSet.Changed(FlagMaxMessageSize) {
		v, _ := flagSet.GetString(FlagMaxMessageSize)
		if err := c.MaxMessageSize.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("--%s: %w", FlagMaxMessageSize, err)
		}
	}
	if flagSet.Changed(FlagMaxSessions) {
		v, err := flagSet.GetInt64(FlagMaxSessions)
		if err != nil {
			return err
		}
		c.MaxSessions = v
	}
	bools := map[string]*bool{
		FlagMDNS:          &c.MDNS,
		FlagTLSSelfSigned: &c.TLSSelfSigned,
	}
	for name, dst := range bools {
		if !flagSet.Changed(name) {
			continue
		}
		v, err := flagSet.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

// FromFlags builds the configuration from defaults, the --config file if
// given, and explicitly set flags, in that order.
func FromFlags(flagSet *pflag.FlagSet) (Config, error) {
	cfg := Default()
	if path, _ := flagSet.GetString(FlagConfig); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyFlags(flagSet); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
