package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL      string `env:"BASE_URL"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"verbapost.db"`
	AdminToken   string `env:"ADMIN_TOKEN"`

	Recording Recording `envPrefix:"RECORDING_"`
	Checkout  Checkout  `envPrefix:"CHECKOUT_"`
	Mail      Mail      `envPrefix:"MAIL_"`
	Civic     Civic     `envPrefix:"CIVIC_"`
	Speech    Speech    `envPrefix:"SPEECH_"`
	Render    Render    `envPrefix:"RENDER_"`
}

type Checkout struct {
	BaseApiURL string `env:"BASE_API_URL"`
	SecretKey  string `env:"SECRET_KEY"`
}

type Mail struct {
	BaseApiURL string `env:"BASE_API_URL"`
	APIKey     string `env:"API_KEY"`
}

type Civic struct {
	BaseApiURL string `env:"BASE_API_URL"`
	APIKey     string `env:"API_KEY"`
}

type Speech struct {
	BaseApiURL string `env:"BASE_API_URL"`
	APIKey     string `env:"API_KEY"`
	Model      string `env:"MODEL" envDefault:"base"`
}

type Render struct {
	BaseApiURL string `env:"BASE_API_URL"`
}

type Recording struct {
	// 35 MiB, roughly three minutes of browser-captured audio.
	MaxBytes int64 `env:"MAX_BYTES" envDefault:"36700160"`
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
