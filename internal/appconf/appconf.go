// Package appconf holds process-level configuration: the runtime environment
// and the settings supplied on the command line. Dashboard settings that users
// edit (API key, monitored stops) live in internal/config instead.
package appconf

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (env Environment) String() string {
	switch env {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment maps the -env flag value to an Environment.
// Unrecognized values fall back to development.
func EnvFlagToEnvironment(flag string) Environment {
	switch flag {
	case "test":
		return Test
	case "prod", "production":
		return Production
	default:
		return Development
	}
}

// Config carries the server's command-line settings.
type Config struct {
	Port       int
	Env        Environment
	Verbose    bool
	RateLimit  int
	ConfigPath string
	IndexPath  string
}
