package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type Config struct {
	Env       string
	Paths     PathsConfig
	MLP       MLPConfig
	BaselineK int  // 0 disables the k-nearest-neighbors baseline
	Normalize bool // min-max scale features and export the ranges
	WarmStart bool // start from the previous model document when it fits
	Server    ServerConfig
	Database  DatabaseConfig
	MQTT      MQTTConfig
}

// PathsConfig holds the input feature files and the output artifacts.
// Relative paths resolve against the working directory.
type PathsConfig struct {
	Training         string
	Testing          string
	ModelJSON        string
	ModelJS          string
	MinMaxJSON       string // written when Normalize is set
	MinMaxJS         string
	DecisionBoundary string // optional
	LossCurve        string // optional
}

type MLPConfig struct {
	HiddenLayers       IntList
	Activation         string
	Solver             string
	LearningRate       float64
	Alpha              float64
	BatchSize          int
	MaxIter            int
	Tol                float64
	NIterNoChange      int
	ValidationFraction float64
	RandomState        int64
}

type ServerConfig struct {
	Port         string
	ModelPath    string
	AllowOrigins []string
}

// DatabaseConfig locates the Postgres run history. An empty URL disables it.
type DatabaseConfig struct {
	URL string
}

// MQTTConfig locates the broker used to announce new models. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// Load reads the configuration from the environment, falling back to the
// defaults of the reference training script.
func Load() (*Config, error) {
	var errs []error
	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Paths: PathsConfig{
			Training:         getEnv("TRAINING_CSV", "../data/dataset/training.csv"),
			Testing:          getEnv("TESTING_CSV", "../data/dataset/testing.csv"),
			ModelJSON:        getEnv("MODEL_JSON", "../data/models/model.json"),
			ModelJS:          getEnv("MODEL_JS", "../common/js_objects/model.js"),
			MinMaxJSON:       getEnv("MIN_MAX_JSON", "../data/models/minMax.json"),
			MinMaxJS:         getEnv("MIN_MAX_JS", "../common/js_objects/minMax.js"),
			DecisionBoundary: getEnv("DECISION_BOUNDARY_PNG", ""),
			LossCurve:        getEnv("LOSS_CURVE_PNG", ""),
		},
		MLP: MLPConfig{
			HiddenLayers:       getEnvParsed(&errs, "MLP_HIDDEN", IntList{10}, ParseIntList),
			Activation:         getEnv("MLP_ACTIVATION", "tanh"),
			Solver:             getEnv("MLP_SOLVER", "adam"),
			LearningRate:       getEnvParsed(&errs, "MLP_LEARNING_RATE", 0.001, parseFloat),
			Alpha:              getEnvParsed(&errs, "MLP_ALPHA", 0.0001, parseFloat),
			BatchSize:          getEnvParsed(&errs, "MLP_BATCH_SIZE", 0, strconv.Atoi),
			MaxIter:            getEnvParsed(&errs, "MLP_MAX_ITER", 10000, strconv.Atoi),
			Tol:                getEnvParsed(&errs, "MLP_TOL", 1e-4, parseFloat),
			NIterNoChange:      getEnvParsed(&errs, "MLP_N_ITER_NO_CHANGE", 10, strconv.Atoi),
			ValidationFraction: getEnvParsed(&errs, "MLP_VALIDATION_FRACTION", 0.0, parseFloat),
			RandomState:        getEnvParsed(&errs, "MLP_RANDOM_STATE", int64(1), parseInt64),
		},
		BaselineK: getEnvParsed(&errs, "BASELINE_K", 0, strconv.Atoi),
		Normalize: getEnvParsed(&errs, "NORMALIZE", false, strconv.ParseBool),
		WarmStart: getEnvParsed(&errs, "WARM_START", false, strconv.ParseBool),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8052"),
			ModelPath:    getEnv("SERVER_MODEL_PATH", "../data/models/model.json"),
			AllowOrigins: strings.Split(getEnv("CORS_ALLOW_ORIGINS", "*"), ","),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			Topic:    getEnv("MQTT_TOPIC", "ml-course/model"),
			ClientID: getEnv("MQTT_CLIENT_ID", ""),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterTrainFlags binds the training options to fs, using the current values as defaults.
func (c *Config) RegisterTrainFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Paths.Training, "training", c.Paths.Training, "Path to the training feature CSV")
	fs.StringVar(&c.Paths.Testing, "testing", c.Paths.Testing, "Path to the testing feature CSV")
	fs.StringVar(&c.Paths.ModelJSON, "model-json", c.Paths.ModelJSON, "Destination of the model JSON document")
	fs.StringVar(&c.Paths.ModelJS, "model-js", c.Paths.ModelJS, "Destination of the model script (const model = ...;)")
	fs.StringVar(&c.Paths.DecisionBoundary, "decision-boundary", c.Paths.DecisionBoundary, "Optional PNG path for the decision boundary chart")
	fs.StringVar(&c.Paths.LossCurve, "loss-curve", c.Paths.LossCurve, "Optional PNG path for the training loss chart")
	fs.Var(&c.MLP.HiddenLayers, "hidden", "Comma separated hidden layer sizes")
	fs.StringVar(&c.MLP.Activation, "activation", c.MLP.Activation, "Hidden activation: tanh, relu, logistic, identity")
	fs.StringVar(&c.MLP.Solver, "solver", c.MLP.Solver, "Optimizer: adam or sgd")
	fs.Float64Var(&c.MLP.LearningRate, "learning-rate", c.MLP.LearningRate, "Initial learning rate")
	fs.Float64Var(&c.MLP.Alpha, "alpha", c.MLP.Alpha, "L2 penalty")
	fs.IntVar(&c.MLP.BatchSize, "batch-size", c.MLP.BatchSize, "Mini-batch size (0 = min(200, n))")
	fs.IntVar(&c.MLP.MaxIter, "max-iter", c.MLP.MaxIter, "Maximum number of epochs")
	fs.Float64Var(&c.MLP.Tol, "tol", c.MLP.Tol, "Minimum loss improvement counted as progress")
	fs.IntVar(&c.MLP.NIterNoChange, "n-iter-no-change", c.MLP.NIterNoChange, "Epochs without progress before stopping")
	fs.Float64Var(&c.MLP.ValidationFraction, "validation-fraction", c.MLP.ValidationFraction, "Hold-out fraction for early stopping (0 disables)")
	fs.Int64Var(&c.MLP.RandomState, "random-state", c.MLP.RandomState, "Seed for weight init and shuffling")
	fs.IntVar(&c.BaselineK, "baseline-k", c.BaselineK, "Also score a k-nearest-neighbors baseline with this k (0 = off)")
	fs.BoolVar(&c.Normalize, "normalize", c.Normalize, "Min-max scale features and write the ranges next to the model")
	fs.StringVar(&c.Paths.MinMaxJSON, "min-max-json", c.Paths.MinMaxJSON, "Destination of the feature ranges JSON")
	fs.StringVar(&c.Paths.MinMaxJS, "min-max-js", c.Paths.MinMaxJS, "Destination of the feature ranges script (const minMax = ...;)")
	fs.BoolVar(&c.WarmStart, "warm-start", c.WarmStart, "Start from the existing model document and keep it unless the new fit is better")
	c.registerSharedFlags(fs)
}

// RegisterServerFlags binds the model server options to fs.
func (c *Config) RegisterServerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Server.Port, "port", c.Server.Port, "HTTP port")
	fs.StringVar(&c.Server.ModelPath, "model", c.Server.ModelPath, "Model document to serve (model.json or model.js)")
	fs.StringVar(&c.MLP.Activation, "activation", c.MLP.Activation, "Hidden activation the model was trained with")
	c.registerSharedFlags(fs)
}

func (c *Config) registerSharedFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Database.URL, "database-url", c.Database.URL, "Postgres DSN for the run history (empty = off)")
	fs.StringVar(&c.MQTT.Broker, "mqtt-broker", c.MQTT.Broker, "MQTT broker for model updates, e.g. tcp://localhost:1883 (empty = off)")
	fs.StringVar(&c.MQTT.Topic, "mqtt-topic", c.MQTT.Topic, "MQTT topic for model updates")
}

var activations = []string{"tanh", "relu", "logistic", "identity"}

// Validate rejects configurations the training run cannot use.
func (c *Config) Validate() error {
	var errs []error
	for _, p := range []lo.Tuple2[string, string]{
		lo.T2("training", c.Paths.Training), lo.T2("testing", c.Paths.Testing),
		lo.T2("model-json", c.Paths.ModelJSON), lo.T2("model-js", c.Paths.ModelJS),
	} {
		if p.B == "" {
			errs = append(errs, fmt.Errorf("config: %s path is empty", p.A))
		}
	}
	if c.Normalize && (c.Paths.MinMaxJSON == "" || c.Paths.MinMaxJS == "") {
		errs = append(errs, errors.New("config: normalize needs both min-max paths"))
	}
	if len(c.MLP.HiddenLayers) == 0 || lo.SomeBy(c.MLP.HiddenLayers, func(h int) bool { return h <= 0 }) {
		errs = append(errs, fmt.Errorf("config: hidden layer sizes must be positive, got %v", c.MLP.HiddenLayers))
	}
	if !lo.Contains(activations, c.MLP.Activation) {
		errs = append(errs, fmt.Errorf("config: unknown activation %q", c.MLP.Activation))
	}
	if c.MLP.Solver != "adam" && c.MLP.Solver != "sgd" {
		errs = append(errs, fmt.Errorf("config: unknown solver %q", c.MLP.Solver))
	}
	if c.MLP.MaxIter <= 0 {
		errs = append(errs, fmt.Errorf("config: max-iter must be positive, got %d", c.MLP.MaxIter))
	}
	if c.MLP.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("config: learning rate must be positive, got %v", c.MLP.LearningRate))
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("config: mqtt topic is empty"))
	}
	if c.BaselineK < 0 {
		errs = append(errs, fmt.Errorf("config: baseline-k must not be negative, got %d", c.BaselineK))
	}
	if c.MLP.ValidationFraction < 0 || c.MLP.ValidationFraction >= 1 {
		errs = append(errs, fmt.Errorf("config: validation fraction must be in [0, 1), got %v", c.MLP.ValidationFraction))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvParsed[T any](errs *[]error, key string, defaultValue T, parse func(string) (T, error)) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := parse(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return defaultValue
	}
	return v
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// IntList is a comma separated list of integers usable as a flag.Value.
type IntList []int

func ParseIntList(s string) (IntList, error) {
	var out IntList
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *IntList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(lo.Map(*l, func(v int, _ int) string { return strconv.Itoa(v) }), ",")
}

func (l *IntList) Set(s string) error {
	v, err := ParseIntList(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
