// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/boxrelay/boxrelay/color"
	"github.com/boxrelay/boxrelay/constant"
	"github.com/boxrelay/boxrelay/key"
	"github.com/boxrelay/boxrelay/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.App + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.typeName(),
	})
}

// typeName returns the string representation of the field's underlying value type.
func (f *Field) typeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []int:
		return "[]int"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	register(key.ServerAddress, ":8002", "Address the HTTP server listens on")
	register(key.ServerShutdownTimeout, 10, "Seconds to wait for in-flight requests on shutdown")
	register(key.BackendHost, "https://h5.aoneroom.com", "Catalog backend host.\nUsed for API calls and to build Referer/Origin headers")
	register(key.BackendAPIHost, "https://h5-api.aoneroom.com", "Catalog ranking API host used by the home listing")
	register(key.BackendTrendingID, "5837669637445565960", "Ranking list shown on the home listing")
	register(key.BackendTimeout, 15, "Seconds before a catalog metadata call is abandoned")
	register(key.SessionWarm, true, "Visit the backend on startup to assign session cookies")
	register(key.SessionFingerprint, true, "Present a browser TLS fingerprint on backend connections")
	register(key.CacheStreamTTL, 1800, "Seconds a resolved stream list stays valid.\nCDN links rotate, keep this short")
	register(key.CacheHomeTTL, 300, "Seconds the home listing stays cached")
	register(key.ProxyTimeout, 30, "Seconds of upstream inactivity before a proxied stream is dropped")
	register(key.ProxyChunkSize, constant.ChunkSize, "Bytes relayed per chunk")
	register(key.ProxyInsecureTLS, false, "Skip certificate verification on upstream connections.\nFaster handshakes, no transport authenticity")
	register(key.ProxyMaxIdleConns, 50, "Idle keep-alive connections kept in the shared pool")
	register(key.ProxyMaxConns, 200, "Maximum connections per upstream host")
	register(key.LogsWrite, false, "Also write logs to a daily file in the logs directory")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, plain")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(color.Purple),
	"blue":     style.Fg(color.Blue),
	"cyan":     style.Fg(color.Cyan),
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
