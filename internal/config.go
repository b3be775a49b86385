package internal

import (
	"fmt"
	"time"
)

// Config is the full environment surface of the server. Required values
// fail fast at boot; everything tunable has a default matching the
// documented behavior.
type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AuthDeadline      time.Duration `env:"AUTH_DEADLINE,default=10s"`

	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`

	MaxContentLength int  `env:"MAX_CONTENT_LENGTH,default=4000"`
	LimitMessages    *int `env:"LIMIT_MESSAGES"`

	// Comma-separated blocklist; empty disables content moderation.
	CensoredWords   string `env:"CENSORED_WORDS"`
	CensorCharacter string `env:"CENSOR_CHARACTER,default=*"`

	MirrorBufferSize  int           `env:"MIRROR_BUFFER_SIZE,default=256"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`

	InspectPort int `env:"INSPECT_PORT,default=8081"`
}

// CharacterRune parses a single-character env value.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CENSOR_CHARACTER must be a single character, got %q", str)
	}
	return r[0], nil
}
