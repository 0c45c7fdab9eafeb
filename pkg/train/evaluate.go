package train

import (
	"fmt"

	"github.com/yngpu/hfjob/pkg/errors"
)

// positiveLabel is the class counted as positive for F1 (MRPC "equivalent").
const positiveLabel = 1

// Metrics are the evaluation scores reported for a run.
type Metrics struct {
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
	F1       float64 `json:"f1" yaml:"f1"`
	Examples int     `json:"examples" yaml:"examples"`
}

// ComputeMetrics takes the argmax over each row of logits and scores the
// predictions against labels with accuracy and binary F1.
func ComputeMetrics(logits [][]float64, labels []int) (Metrics, error) {
	if len(logits) != len(labels) {
		return Metrics{}, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			"logits and labels differ in length", nil,
			map[string]any{"logits": len(logits), "labels": len(labels)})
	}
	if len(labels) == 0 {
		return Metrics{}, errors.New(errors.ErrCodeInvalidRequest, "no evaluation examples")
	}

	var correct, tp, fp, fn int
	for i, row := range logits {
		pred, err := argmax(row)
		if err != nil {
			return Metrics{}, fmt.Errorf("example %d: %w", i, err)
		}

		label := labels[i]
		if pred == label {
			correct++
		}
		switch {
		case pred == positiveLabel && label == positiveLabel:
			tp++
		case pred == positiveLabel:
			fp++
		case label == positiveLabel:
			fn++
		}
	}

	m := Metrics{
		Accuracy: float64(correct) / float64(len(labels)),
		Examples: len(labels),
	}
	if tp > 0 {
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(tp+fn)
		m.F1 = 2 * precision * recall / (precision + recall)
	}
	return m, nil
}

// argmax returns the index of the largest value; ties go to the first.
func argmax(row []float64) (int, error) {
	if len(row) == 0 {
		return 0, errors.New(errors.ErrCodeInvalidRequest, "empty logits row")
	}
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best, nil
}
