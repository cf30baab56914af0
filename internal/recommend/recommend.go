// File path: internal/recommend/recommend.go
package recommend

import (
	"sort"

	"github.com/datalysis-ai/datalysis/internal/common"
	"github.com/datalysis-ai/datalysis/internal/domain"
)

const (
	taskMatchBonus    = 40
	largeRowThreshold = 10000
	smallRowThreshold = 1000
	missingPenaltyPct = 10.0
	manyCategoricals  = 5
	recommendationCap = 5
)

// ModelRecommendation pairs a catalog entry with its suitability score
// and the reasoning lines that produced it.
type ModelRecommendation struct {
	Model   Model    `json:"model"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// InferTask maps the dataset characteristics to a learning task. A
// detected categorical target means classification; enough numeric
// columns support regression against the trailing one; anything else
// falls back to unsupervised clustering.
func InferTask(chars domain.Characteristics) string {
	if chars.HasTarget {
		return TaskClassification
	}
	if chars.NumericCols >= 2 {
		return TaskRegression
	}
	return TaskClustering
}

// Recommend scores the catalog against the dataset and returns the best
// candidates for the inferred task, highest score first.
func Recommend(chars domain.Characteristics) []ModelRecommendation {
	logger := common.Logger()
	task := InferTask(chars)
	var recs []ModelRecommendation
	for _, model := range catalog {
		if model.Task != task {
			continue
		}
		score, reasons := scoreModel(model, chars)
		recs = append(recs, ModelRecommendation{Model: model, Score: score, Reasons: reasons})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	if len(recs) > recommendationCap {
		recs = recs[:recommendationCap]
	}
	logger.Debug("recommend: catalog scored", "task", task, "candidates", len(recs))
	return recs
}

func scoreModel(model Model, chars domain.Characteristics) (int, []string) {
	score := model.BaseScore + taskMatchBonus
	reasons := []string{"matches the " + model.Task + " task"}

	add := func(delta int, reason string) {
		score += delta
		reasons = append(reasons, reason)
	}

	switch {
	case chars.Rows >= largeRowThreshold:
		if model.Family == familyEnsemble || model.Family == familyBoosting {
			add(15, "large dataset favors ensembles")
		}
		if model.Family == familySVM {
			add(-10, "margin methods scale poorly to large datasets")
		}
	case chars.Rows < smallRowThreshold:
		if model.Family == familyLinear || model.Family == familySVM {
			add(10, "small dataset favors simpler models")
		}
	}

	if chars.HighDimensional {
		if model.Family == familyLinear || model.Family == familyDecomposition {
			add(10, "high dimensionality favors linear and projection methods")
		}
		if model.Family == familyDensity {
			add(-10, "density methods degrade in high dimensions")
		}
	}

	if chars.Imbalanced {
		if model.Family == familyEnsemble || model.Family == familyBoosting {
			add(10, "class imbalance favors ensembles")
		}
		if model.Name == "Logistic Regression" {
			add(-5, "plain logistic regression struggles with imbalance")
		}
	}

	if chars.MissingPct > missingPenaltyPct {
		if model.Family == familySVM {
			add(-5, "missing data hurts margin methods")
		}
		if model.Family == familyEnsemble || model.Family == familyBoosting {
			add(5, "tree ensembles tolerate missing data")
		}
	}

	if chars.CategoricalCols > manyCategoricals && model.Family == familyBoosting {
		add(5, "many categorical columns favor boosting")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, reasons
}
