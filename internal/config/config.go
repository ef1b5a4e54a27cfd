package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"license-market.db"`

	Gateway Gateway `envPrefix:"GATEWAY_"`
}

type Gateway struct {
	PayURL       string `env:"PAY_URL"`
	TerminalCode string `env:"TERMINAL_CODE"`
	HashSecret   string `env:"HASH_SECRET"`
	ReturnPath   string `env:"RETURN_PATH" envDefault:"/api/payment/return"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
