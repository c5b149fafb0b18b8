// Package config loads hook plans.
//
// A plan is a TOML or YAML file that says which interceptors to attach to
// which hookable functions. The format is chosen by file extension.
//
//	[logging]
//	level = "debug"
//	format = "console"
//
//	[[attach]]
//	function = "demo.add"
//	hook = "timing"
//	priority = 1000
//
//	[[attach]]
//	function = "demo.add"
//	hook = "retry"
//	options = { attempts = 3 }
//
//	[[attach]]
//	function = "demo.greet"
//	hook = "lua"
//	script = "greet.lua"
//	entry = "intercept"
//
// An attachment without a priority takes its hook kind's default: 1000 for
// observers (log, timing, count), 500 for retry and recover, 0 for lua.
// Relative script paths are resolved against the plan file's directory.
// Environment variables prefixed with SAFEHOOK_LOG_ override the logging
// table.
package config
