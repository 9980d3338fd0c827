package experience

import (
	"fmt"
	"strconv"
)

// Kind identifies a remediation atom's rendering rule. The set is closed:
// anything outside it renders to no commands rather than failing, so new
// miner output degrades gracefully on older cores.
type Kind string

const (
	// KindPipPin pins a dependency to a version spec: args {name, spec}.
	KindPipPin Kind = "pip_pin"

	// KindPipInstall installs a package, optionally with a spec: args {name, spec}.
	KindPipInstall Kind = "pip_install"

	// KindSetEnv exports an environment variable: args {key, value}.
	KindSetEnv Kind = "set_env"

	// KindSetUmask sets the process umask: args {value}.
	KindSetUmask Kind = "set_umask"

	// KindSetPytestFlag sets a named pytest flag: args {name, value}.
	KindSetPytestFlag Kind = "set_pytest_flag"

	// KindSetDjangoSetting injects a settings override into Django:
	// args {key, value}.
	KindSetDjangoSetting Kind = "set_django_setting"

	// KindUpgradePackage relaxes a minimum version floor by upgrading:
	// args {name, min_version}.
	KindUpgradePackage Kind = "or_upgrade_pkg"
)

// Render maps an atom to the shell commands that apply it. Pure and
// stateless. Unrecognized kinds and missing required arguments yield an
// empty list, never an error: a broken atom must not sink the whole entry.
func Render(atom Atom) []string {
	args := atom.Args

	switch atom.Name {
	case KindPipPin, KindPipInstall:
		pkg, ok := stringArg(args, "name")
		if !ok {
			return nil
		}
		spec, _ := stringArg(args, "spec")
		return []string{fmt.Sprintf("pip install '%s%s'", pkg, spec)}

	case KindSetPytestFlag:
		flag, ok := stringArg(args, "name")
		if !ok || flag == "" {
			return nil
		}
		value, ok := anyArg(args, "value")
		if !ok {
			return nil
		}
		return []string{fmt.Sprintf("pytest %s=%v", flag, value)}

	case KindSetEnv:
		key, ok := stringArg(args, "key")
		if !ok || key == "" {
			return nil
		}
		value, ok := anyArg(args, "value")
		if !ok {
			return nil
		}
		return []string{fmt.Sprintf("export %s=%v", key, value)}

	case KindSetUmask:
		value, ok := anyArg(args, "value")
		if !ok {
			return nil
		}
		return []string{fmt.Sprintf("umask %v", value)}

	case KindSetDjangoSetting:
		key, ok := stringArg(args, "key")
		if !ok || key == "" {
			return nil
		}
		value, _ := anyArg(args, "value")
		// Exact quoting is left to the agent; this is a minimal injection.
		return []string{
			"python - <<'PY'",
			"from django.conf import settings",
			fmt.Sprintf("settings.%s = %s", key, pyLiteral(value)),
			"PY",
		}

	case KindUpgradePackage:
		pkg, ok := stringArg(args, "name")
		if !ok || pkg == "" {
			return nil
		}
		minVersion, ok := stringArg(args, "min_version")
		if !ok || minVersion == "" {
			return nil
		}
		return []string{fmt.Sprintf("pip install '%s>=%s'", pkg, minVersion)}
	}

	return nil
}

// RenderEntry concatenates the rendered commands of all atoms, preserving
// atom order.
func RenderEntry(e *Entry) []string {
	var commands []string
	for _, atom := range e.Atoms {
		commands = append(commands, Render(atom)...)
	}
	return commands
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func anyArg(args map[string]any, key string) (any, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// pyLiteral renders a JSON-decoded value as a Python literal for the Django
// settings injection snippet.
func pyLiteral(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
