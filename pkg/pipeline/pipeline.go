package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/gniziemazity/ml-course-phase-2/pkg/charts"
	"github.com/gniziemazity/ml-course-phase-2/pkg/config"
	"github.com/gniziemazity/ml-course-phase-2/pkg/data"
	"github.com/gniziemazity/ml-course-phase-2/pkg/dataprep"
	"github.com/gniziemazity/ml-course-phase-2/pkg/export"
	"github.com/gniziemazity/ml-course-phase-2/pkg/model"
	"github.com/gniziemazity/ml-course-phase-2/pkg/stats"
)

// Result summarizes one training run.
type Result struct {
	RunID        string
	TrainSamples int
	TestSamples  int
	Accuracy     float64
	Correct      int
	Baseline     float64 // KNN accuracy, when enabled
	Confusion    [][]int
	Epochs       int
	Converged    bool
	FinalLoss    float64
	NeuronCounts []int
	ModelPath    string
	WarmStarted  bool // training began from the previous model document
	KeptPrevious bool // the previous model scored better and was exported again
}

// Observer is told about every run that exported a model. Observer errors are
// logged and do not fail the run.
type Observer interface {
	RunFinished(ctx context.Context, res *Result, doc *export.Document) error
}

// Run reads the training file, fits an MLP, scores it on the testing file and exports
// the model document to both configured destinations. Charts are rendered when their
// paths are set. Any failure aborts the run.
func Run(ctx context.Context, cfg *config.Config, table *dataprep.LabelTable, logger *slog.Logger, observers ...Observer) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{RunID: uuid.NewString()}
	logger = logger.With(slog.String(config.RunIDKey, res.RunID))

	XTrain, yTrain, err := load(logger, cfg.Paths.Training, table)
	if err != nil {
		return nil, err
	}
	res.TrainSamples = len(XTrain)
	res.NeuronCounts = append(append([]int{len(XTrain[0])}, cfg.MLP.HiddenLayers...), table.Len())

	var scaler *stats.MinMaxScaler
	if cfg.Normalize {
		scaler = stats.FitMinMax(XTrain)
		XTrain = scaler.Transform(XTrain)
		logger.Info("features normalized", slog.Any("min", scaler.Min), slog.Any("max", scaler.Max))
	}

	var opts []model.MLPOption
	var previous *model.MLPClassifier
	if cfg.WarmStart {
		layers, err := previousLayers(logger, cfg.Paths.ModelJSON, res.NeuronCounts, table)
		if err != nil {
			return nil, err
		}
		if layers != nil {
			if previous, err = model.NewMLPFromLayers(layers, cfg.MLP.Activation); err != nil {
				return nil, fmt.Errorf("pipeline: warm start: %w", err)
			}
			opts = append(opts, model.WithInitialLayers(layers))
			res.WarmStarted = true
		}
	}

	clf := NewClassifier(cfg.MLP, table.Len(), opts...)
	start := time.Now()
	logger.Info("training started",
		slog.String(config.ModelNameKey, "MLPClassifier"),
		slog.String(config.OperationKey, "fit"),
		slog.Any("hidden", []int(cfg.MLP.HiddenLayers)),
		slog.String("activation", cfg.MLP.Activation),
		slog.Int("max_iter", cfg.MLP.MaxIter),
		slog.Bool("warm_start", res.WarmStarted))
	if err := clf.FitContext(ctx, XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("pipeline: fit: %w", err)
	}
	res.Epochs, res.Converged = clf.NIter, clf.Converged
	res.FinalLoss = clf.LossCurve[len(clf.LossCurve)-1]
	logger.Info("training finished",
		slog.String(config.OperationKey, "fit"),
		slog.Int(config.EpochsKey, res.Epochs),
		slog.Float64(config.LossKey, res.FinalLoss),
		slog.Bool(config.ConvergedKey, res.Converged),
		slog.Int64(config.DurationMsKey, time.Since(start).Milliseconds()))
	if !res.Converged {
		logger.Warn("maximum iterations reached before the loss settled", slog.Int(config.EpochsKey, res.Epochs))
	}
	lossCurve := clf.LossCurve
	if previous != nil {
		if clf, res.KeptPrevious, err = keepBetter(previous, clf, XTrain, yTrain); err != nil {
			return nil, err
		}
		if res.KeptPrevious {
			logger.Info("previous model kept", slog.String(config.PathKey, cfg.Paths.ModelJSON))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	XTest, yTest, err := load(logger, cfg.Paths.Testing, table)
	if err != nil {
		return nil, err
	}
	if scaler != nil {
		XTest = scaler.Transform(XTest)
	}
	res.TestSamples = len(XTest)
	if res.Accuracy, err = clf.Score(XTest, yTest); err != nil {
		return nil, fmt.Errorf("pipeline: score: %w", err)
	}
	pred, err := clf.Predict(XTest)
	if err != nil {
		return nil, fmt.Errorf("pipeline: predict: %w", err)
	}
	res.Confusion = model.ConfusionMatrix(yTest, pred, table.Len())
	for code := range res.Confusion {
		res.Correct += res.Confusion[code][code]
	}
	logger.Info("testing finished",
		slog.String(config.OperationKey, "score"),
		slog.Int(config.SamplesKey, res.TestSamples),
		slog.Float64(config.AccuracyKey, res.Accuracy))
	for code, name := range table.Names() {
		prec, rec, f1 := model.PrecisionRecallF1(yTest, pred, code)
		logger.Debug("class report", slog.String("class", name),
			slog.Float64("precision", prec), slog.Float64("recall", rec), slog.Float64("f1", f1))
	}

	if cfg.BaselineK > 0 {
		if res.Baseline, err = baseline(cfg.BaselineK, XTrain, yTrain, XTest, yTest); err != nil {
			return nil, err
		}
		logger.Info("baseline scored",
			slog.String(config.ModelNameKey, "KNN"),
			slog.Int("k", cfg.BaselineK),
			slog.Float64(config.AccuracyKey, res.Baseline))
	}

	doc, err := export.NewDocument(res.NeuronCounts, table.Names(), clf.Layers())
	if err != nil {
		return nil, err
	}
	exp := export.Exporter{JSONPath: cfg.Paths.ModelJSON, ScriptPath: cfg.Paths.ModelJS}
	if err := exp.Export(doc); err != nil {
		return nil, err
	}
	res.ModelPath = exp.JSONPath
	logger.Info("model exported",
		slog.String(config.OperationKey, "export"),
		slog.Any("neuronCounts", res.NeuronCounts),
		slog.String("json", exp.JSONPath),
		slog.String("script", exp.ScriptPath))

	if scaler != nil {
		mm := export.MinMaxExporter{JSONPath: cfg.Paths.MinMaxJSON, ScriptPath: cfg.Paths.MinMaxJS}
		if err := mm.Export(scaler); err != nil {
			return nil, err
		}
		logger.Info("feature ranges exported",
			slog.String(config.OperationKey, "export"),
			slog.String("json", mm.JSONPath),
			slog.String("script", mm.ScriptPath))
	}

	if p := cfg.Paths.DecisionBoundary; p != "" {
		if err := charts.DecisionBoundary(clf, XTest, yTest, table, charts.DefaultResolution, p); err != nil {
			return nil, err
		}
		logger.Info("decision boundary saved", slog.String(config.PathKey, p))
	}
	if p := cfg.Paths.LossCurve; p != "" {
		if err := charts.LossCurve(lossCurve, p); err != nil {
			return nil, err
		}
		logger.Info("loss curve saved", slog.String(config.PathKey, p))
	}

	for _, o := range observers {
		if err := o.RunFinished(ctx, res, doc); err != nil {
			logger.Warn("run observer failed", slog.String("observer", fmt.Sprintf("%T", o)), slog.Any("error", err))
		}
	}
	return res, nil
}

// NewClassifier builds the MLP described by cfg with one output per class.
// extra options are applied last.
func NewClassifier(cfg config.MLPConfig, classes int, extra ...model.MLPOption) *model.MLPClassifier {
	opts := []model.MLPOption{
		model.WithHiddenLayers(cfg.HiddenLayers...),
		model.WithActivation(cfg.Activation),
		model.WithSolver(cfg.Solver),
		model.WithLearningRate(cfg.LearningRate),
		model.WithAlpha(cfg.Alpha),
		model.WithBatchSize(cfg.BatchSize),
		model.WithMaxIter(cfg.MaxIter),
		model.WithTol(cfg.Tol),
		model.WithNIterNoChange(cfg.NIterNoChange),
		model.WithValidationFraction(cfg.ValidationFraction),
		model.WithRandomState(cfg.RandomState),
		model.WithClasses(classes),
	}
	return model.NewMLPClassifier(append(opts, extra...)...)
}

// previousLayers returns the layers of the model document at path when it was trained
// for the same network shape and classes. A missing or different model yields nil.
func previousLayers(logger *slog.Logger, path string, neuronCounts []int, table *dataprep.LabelTable) ([]model.LayerParameters, error) {
	doc, err := export.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no previous model, training from scratch", slog.String(config.PathKey, path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: warm start: %w", err)
	}
	if !slices.Equal(doc.NeuronCounts, neuronCounts) || !slices.Equal(doc.Classes, table.Names()) {
		logger.Warn("previous model does not match, training from scratch",
			slog.String(config.PathKey, path),
			slog.Any("neuronCounts", doc.NeuronCounts),
			slog.Any("want", neuronCounts))
		return nil, nil
	}
	layers, err := doc.Layers()
	if err != nil {
		return nil, fmt.Errorf("pipeline: warm start: %w", err)
	}
	return layers, nil
}

// keepBetter returns next unless previous scores strictly higher on X, y.
func keepBetter(previous, next *model.MLPClassifier, X [][]float64, y []int) (*model.MLPClassifier, bool, error) {
	prevScore, err := previous.Score(X, y)
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: score previous model: %w", err)
	}
	nextScore, err := next.Score(X, y)
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: score: %w", err)
	}
	if prevScore > nextScore {
		return previous, true, nil
	}
	return next, false, nil
}

func baseline(k int, XTrain [][]float64, yTrain []int, XTest [][]float64, yTest []int) (float64, error) {
	knn := model.NewKNN(k)
	if err := knn.Fit(XTrain, yTrain); err != nil {
		return 0, fmt.Errorf("pipeline: baseline: %w", err)
	}
	acc, err := knn.Score(XTest, yTest)
	if err != nil {
		return 0, fmt.Errorf("pipeline: baseline: %w", err)
	}
	return acc, nil
}

func load(logger *slog.Logger, path string, table *dataprep.LabelTable) ([][]float64, []int, error) {
	X, y, err := data.ReadFeatureFile(path, table)
	if err != nil {
		return nil, nil, err
	}
	if len(X) == 0 {
		return nil, nil, fmt.Errorf("pipeline: %s has no data rows", path)
	}
	s := data.Summarize(X)
	logger.Info("feature file loaded",
		slog.String(config.OperationKey, "read"),
		slog.String(config.PathKey, path),
		slog.Int(config.SamplesKey, s.Samples),
		slog.Int(config.FeaturesKey, s.Features),
		slog.Int(config.ClassesKey, len(lo.Uniq(y))))
	logger.Debug("feature ranges", slog.String(config.PathKey, path),
		slog.Any("min", s.Min), slog.Any("max", s.Max), slog.Any("mean", s.Mean), slog.Any("std", s.Std))
	return X, y, nil
}
