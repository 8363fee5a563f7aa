package core

// ReservedParameterNames enumerates keys that configs use for structural
// purposes and that a user-declared parameter may never shadow, per
// spec.md §3. Grounded on Config.RESERVED_PARAMETER_NAMES in the Python
// original (original_source/src/taskchain/config.py).
var ReservedParameterNames = map[string]bool{
	"tasks":                   true,
	"uses":                    true,
	"excluded_tasks":          true,
	"configs":                 true,
	"for_namespaces":          true,
	"human_readable_data_name": true,
	"main_part":               true,
}

// IsReservedParameterName reports whether name is reserved for structural
// use and therefore illegal as a user parameter name.
func IsReservedParameterName(name string) bool {
	return ReservedParameterNames[name]
}
