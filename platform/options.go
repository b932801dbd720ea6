// Package platform assembles the runtime: options, shared clients, capability
// services and the worker pool hosting registered agents.
package platform

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

var (
	ErrServerURLRequired  = errors.New("server URL required")
	ErrCredentialRequired = errors.New("api key or certificate required")
)

// CacheOptions tunes one in-process TTL cache.
type CacheOptions struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLMinutes int  `mapstructure:"ttlMinutes"`
}

// TTL returns the configured duration, or zero when the cache is disabled or
// unset so consumers fall back to their defaults.
func (c CacheOptions) TTL() time.Duration {
	if !c.Enabled || c.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// CacheSettings groups the per-concern cache knobs.
type CacheSettings struct {
	Knowledge           CacheOptions `mapstructure:"knowledge"`
	Settings            CacheOptions `mapstructure:"settings"`
	WorkflowDefinitions CacheOptions `mapstructure:"workflowDefinitions"`
}

// Options is the runtime configuration. Credentials are either an opaque API
// key, a JWT-shaped API key carrying a tenant claim, or a base64 certificate
// pair whose subject names the tenant.
type Options struct {
	ServerURL         string `mapstructure:"serverUrl"`
	APIKey            string `mapstructure:"apiKey"`
	CertificateBase64 string `mapstructure:"certificateBase64"`
	PrivateKeyBase64  string `mapstructure:"privateKeyBase64"`

	// TenantID overrides tenant extraction from credentials.
	TenantID string `mapstructure:"tenantId"`

	ConsoleLogLevel string `mapstructure:"consoleLogLevel"`
	ServerLogLevel  string `mapstructure:"serverLogLevel"`

	// LocalMode swaps the knowledge, document and secret providers for
	// in-process implementations.
	LocalMode bool `mapstructure:"localMode"`
	// LocalKnowledgeDirs are directories of YAML resource files seeding the
	// local knowledge provider.
	LocalKnowledgeDirs []string `mapstructure:"localKnowledgeDirs"`

	Cache CacheSettings `mapstructure:"cache"`
}

// Load reads options from an optional YAML file with XIANS_* environment
// overrides. Options are read once at startup.
func Load(path string) (Options, error) {
	v := viper.New()
	v.SetDefault("consoleLogLevel", "info")
	v.SetDefault("serverLogLevel", "warn")
	v.SetDefault("cache.knowledge.enabled", true)
	v.SetDefault("cache.knowledge.ttlMinutes", 5)
	v.SetDefault("cache.settings.enabled", true)
	v.SetDefault("cache.settings.ttlMinutes", 5)
	v.SetDefault("cache.workflowDefinitions.enabled", true)
	v.SetDefault("cache.workflowDefinitions.ttlMinutes", 5)

	v.SetEnvPrefix("XIANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("read options file: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

// Validate checks the minimum configuration. Messaging and the engine always
// need a server; local mode only relaxes the credential requirement.
func (o Options) Validate() error {
	if o.ServerURL == "" {
		return ErrServerURLRequired
	}
	if !o.LocalMode && o.APIKey == "" && o.CertificateBase64 == "" {
		return ErrCredentialRequired
	}
	return nil
}

// ResolveTenant determines the default tenant: the explicit TenantID, the
// certificate subject, or the `tenant_id` claim of a JWT-shaped API key. An
// empty result is valid for system-scoped deployments.
func (o Options) ResolveTenant() (string, error) {
	if o.TenantID != "" {
		return o.TenantID, nil
	}
	if o.CertificateBase64 != "" {
		return tenantFromCertificate(o.CertificateBase64)
	}
	if strings.Count(o.APIKey, ".") == 2 {
		if tenant, err := tenantFromToken(o.APIKey); err == nil {
			return tenant, nil
		}
	}
	return "", nil
}

// tenantFromCertificate reads the subject common name from a base64-encoded
// certificate, accepting both raw DER and PEM payloads.
func tenantFromCertificate(encoded string) (string, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode certificate: %w", err)
	}
	if block, _ := pem.Decode(der); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "", fmt.Errorf("parse certificate: %w", err)
	}
	if cert.Subject.CommonName == "" {
		return "", errors.New("certificate subject has no common name")
	}
	return cert.Subject.CommonName, nil
}

// tenantFromToken extracts the tenant claim without verifying the signature.
// The backend is the verifier; the claim only seeds the default tenant.
func tenantFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	tenant, _ := claims["tenant_id"].(string)
	if tenant == "" {
		return "", errors.New("token has no tenant_id claim")
	}
	return tenant, nil
}
