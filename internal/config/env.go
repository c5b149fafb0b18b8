package config

import "strings"

// EnvPrefix prefixes environment variables that override plan settings.
const EnvPrefix = "SAFEHOOK_"

// envMapping maps environment variables to logging fields.
var envMapping = map[string]func(p *Plan, v string){
	EnvPrefix + "LOG_LEVEL":  func(p *Plan, v string) { p.Logging.Level = strings.ToLower(v) },
	EnvPrefix + "LOG_FORMAT": func(p *Plan, v string) { p.Logging.Format = strings.ToLower(v) },
	EnvPrefix + "LOG_OUTPUT": func(p *Plan, v string) { p.Logging.Output = v },
}

// applyEnv overrides plan fields from the environment.
// Empty values are treated as unset.
func (l *Loader) applyEnv(p *Plan) {
	if l.lookup == nil {
		return
	}
	for env, set := range envMapping {
		if v, ok := l.lookup(env); ok && v != "" {
			set(p, v)
		}
	}
}
