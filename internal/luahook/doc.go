// Package luahook runs interceptors written in Lua.
//
// A Script is compiled once and bound to any hookable function. Each call
// borrows a sandboxed Lua state from the script's pool, so concurrent and
// re-entrant calls never share a state. Only the base, table, string and
// math libraries are available; print goes to the configured logger.
//
//	function intercept(args, next, name)
//	    args.Left = args.Left * 2
//	    return next(args) + 1
//	end
//
// Struct arguments appear as tables keyed by field name, or by the `lua`
// struct tag when present. Values with no Lua equivalent travel as
// userdata and convert back unchanged. An error result is a string or nil.
//
// Failures inside the script panic with *ScriptError. A panic raised
// downstream of next propagates unchanged unless the script catches it
// with pcall.
package luahook
