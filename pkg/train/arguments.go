package train

// Fixed fine-tuning setup: BERT on GLUE MRPC paraphrase detection.
const (
	DefaultDataset       = "glue"
	DefaultDatasetConfig = "mrpc"
	DefaultCheckpoint    = "bert-base-uncased"
	DefaultNumLabels     = 2
	DefaultLearningRate  = 5e-5
	DefaultOptimizer     = "adamw"

	// DefaultMaxSteps keeps smoke runs short.
	DefaultMaxSteps = 5

	EvalStrategyEpoch = "epoch"
)

// Dataset selects the dataset, its splits and the columns fed to the tokenizer.
type Dataset struct {
	Name            string   `json:"name" yaml:"name"`
	Config          string   `json:"config" yaml:"config"`
	TrainSplit      string   `json:"train_split" yaml:"train_split"`
	EvalSplit       string   `json:"eval_split" yaml:"eval_split"`
	TextColumns     []string `json:"text_columns" yaml:"text_columns"`
	CacheDir        string   `json:"cache_dir" yaml:"cache_dir"`
	BatchedTokenize bool     `json:"batched_tokenize" yaml:"batched_tokenize"`
	Truncation      bool     `json:"truncation" yaml:"truncation"`
}

// Model selects the pretrained checkpoint.
type Model struct {
	Checkpoint string `json:"checkpoint" yaml:"checkpoint"`
	NumLabels  int    `json:"num_labels" yaml:"num_labels"`
	CacheDir   string `json:"cache_dir" yaml:"cache_dir"`
}

// Metric names the evaluation metric the trainer reports against.
type Metric struct {
	Name     string `json:"name" yaml:"name"`
	Config   string `json:"config" yaml:"config"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// Arguments are the training-argument settings handed to the trainer.
// Field names follow the trainer's own argument names.
type Arguments struct {
	OutputDir           string  `json:"output_dir" yaml:"output_dir"`
	MaxSteps            int     `json:"max_steps" yaml:"max_steps"`
	EvalStrategy        string  `json:"eval_strategy" yaml:"eval_strategy"`
	LearningRate        float64 `json:"learning_rate" yaml:"learning_rate"`
	Optimizer           string  `json:"optim" yaml:"optim"`
	NoCUDA              bool    `json:"no_cuda" yaml:"no_cuda"`
	DataloaderPinMemory bool    `json:"dataloader_pin_memory" yaml:"dataloader_pin_memory"`
	PadToLongest        bool    `json:"pad_to_longest" yaml:"pad_to_longest"`
}

// DefaultArguments returns the fixed training arguments writing under l.
func DefaultArguments(l Layout) Arguments {
	return Arguments{
		OutputDir:           l.Logs,
		MaxSteps:            DefaultMaxSteps,
		EvalStrategy:        EvalStrategyEpoch,
		LearningRate:        DefaultLearningRate,
		Optimizer:           DefaultOptimizer,
		NoCUDA:              false,
		DataloaderPinMemory: true,
		PadToLongest:        true,
	}
}

// DefaultDatasetFor returns the MRPC dataset selection cached under l.
func DefaultDatasetFor(l Layout) Dataset {
	return Dataset{
		Name:            DefaultDataset,
		Config:          DefaultDatasetConfig,
		TrainSplit:      "train",
		EvalSplit:       "validation",
		TextColumns:     []string{"sentence1", "sentence2"},
		CacheDir:        l.Datasets,
		BatchedTokenize: true,
		Truncation:      true,
	}
}

// DefaultModelFor returns the BERT checkpoint selection cached under l.
func DefaultModelFor(l Layout) Model {
	return Model{
		Checkpoint: DefaultCheckpoint,
		NumLabels:  DefaultNumLabels,
		CacheDir:   l.Models,
	}
}

// DefaultMetricFor returns the MRPC metric selection cached under l.
func DefaultMetricFor(l Layout) Metric {
	return Metric{
		Name:     DefaultDataset,
		Config:   DefaultDatasetConfig,
		CacheDir: l.Cache,
	}
}
