package llm

import "time"

// Config names the provider model behind each capability tier and bounds the
// global call rate. Free-tier providers throttle hard, so every model call in
// the process shares one pacing gate.
type Config struct {
	SmallModel  string `envconfig:"SMALL_MODEL" split_words:"true" default:"mistralai/mistral-small-3.2-24b-instruct:free"`
	MediumModel string `envconfig:"MEDIUM_MODEL" split_words:"true" default:"mistralai/mistral-medium-3"`
	LargeModel  string `envconfig:"LARGE_MODEL" split_words:"true" default:"mistralai/mistral-large-2411"`

	SmallTemperature  float32 `envconfig:"SMALL_TEMPERATURE" split_words:"true" default:"0.1"`
	MediumTemperature float32 `envconfig:"MEDIUM_TEMPERATURE" split_words:"true" default:"0.1"`
	LargeTemperature  float32 `envconfig:"LARGE_TEMPERATURE" split_words:"true" default:"0.3"`

	MinCallInterval time.Duration `envconfig:"MIN_CALL_INTERVAL" split_words:"true" default:"1s"`
}
