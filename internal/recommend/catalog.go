// File path: internal/recommend/catalog.go
package recommend

// Model families drive the suitability scoring.
const (
	familyLinear        = "linear"
	familyEnsemble      = "ensemble"
	familyBoosting      = "boosting"
	familySVM           = "svm"
	familyClustering    = "clustering"
	familyDensity       = "density"
	familyDecomposition = "decomposition"
)

// Supported learning tasks.
const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
	TaskClustering     = "clustering"
)

// Model is one catalog entry. Names follow the scikit-learn estimators
// users will reach for after the recommendation.
type Model struct {
	Name          string   `json:"name"`
	Family        string   `json:"family"`
	Task          string   `json:"task"`
	Description   string   `json:"description"`
	Strengths     []string `json:"strengths"`
	Limitations   []string `json:"limitations"`
	Preprocessing []string `json:"preprocessing"`
	BaseScore     int      `json:"base_score"`
}

var catalog = []Model{
	{
		Name:          "Logistic Regression",
		Family:        familyLinear,
		Task:          TaskClassification,
		Description:   "Linear classifier estimating class probabilities.",
		Strengths:     []string{"fast to train", "interpretable coefficients", "well-calibrated probabilities"},
		Limitations:   []string{"linear decision boundary", "sensitive to correlated features"},
		Preprocessing: []string{"scale numeric features", "one-hot encode categoricals"},
		BaseScore:     20,
	},
	{
		Name:          "Random Forest Classifier",
		Family:        familyEnsemble,
		Task:          TaskClassification,
		Description:   "Bagged decision trees voting on the class.",
		Strengths:     []string{"handles nonlinearity", "robust to outliers", "little tuning needed"},
		Limitations:   []string{"larger memory footprint", "less interpretable"},
		Preprocessing: []string{"label encode categoricals"},
		BaseScore:     30,
	},
	{
		Name:          "Gradient Boosting Classifier",
		Family:        familyBoosting,
		Task:          TaskClassification,
		Description:   "Sequentially boosted trees optimizing classification loss.",
		Strengths:     []string{"top accuracy on tabular data", "handles mixed feature types"},
		Limitations:   []string{"slower to train", "sensitive to learning rate"},
		Preprocessing: []string{"label encode categoricals"},
		BaseScore:     28,
	},
	{
		Name:          "SVM Classifier",
		Family:        familySVM,
		Task:          TaskClassification,
		Description:   "Maximum-margin classifier with kernel support.",
		Strengths:     []string{"effective in high dimensions", "kernel trick for nonlinearity"},
		Limitations:   []string{"poor scaling beyond ~10k rows", "needs careful tuning"},
		Preprocessing: []string{"scale numeric features", "impute missing values"},
		BaseScore:     15,
	},
	{
		Name:          "Linear Regression",
		Family:        familyLinear,
		Task:          TaskRegression,
		Description:   "Ordinary least squares over the numeric features.",
		Strengths:     []string{"interpretable", "fast", "good baseline"},
		Limitations:   []string{"assumes linearity", "sensitive to outliers"},
		Preprocessing: []string{"scale numeric features", "drop or impute missing values"},
		BaseScore:     20,
	},
	{
		Name:          "Random Forest Regressor",
		Family:        familyEnsemble,
		Task:          TaskRegression,
		Description:   "Bagged regression trees averaging predictions.",
		Strengths:     []string{"captures interactions", "robust to outliers"},
		Limitations:   []string{"extrapolates poorly", "larger models"},
		Preprocessing: []string{"label encode categoricals"},
		BaseScore:     30,
	},
	{
		Name:          "Gradient Boosting Regressor",
		Family:        familyBoosting,
		Task:          TaskRegression,
		Description:   "Boosted trees minimizing squared error.",
		Strengths:     []string{"state of the art on tabular data", "handles skewed targets"},
		Limitations:   []string{"tuning sensitive", "slower training"},
		Preprocessing: []string{"label encode categoricals"},
		BaseScore:     28,
	},
	{
		Name:          "K-Means Clustering",
		Family:        familyClustering,
		Task:          TaskClustering,
		Description:   "Partitions rows into k spherical clusters.",
		Strengths:     []string{"fast", "scales well", "easy to explain"},
		Limitations:   []string{"k must be chosen", "assumes convex clusters"},
		Preprocessing: []string{"scale numeric features", "drop identifier columns"},
		BaseScore:     25,
	},
	{
		Name:          "DBSCAN",
		Family:        familyDensity,
		Task:          TaskClustering,
		Description:   "Density-based clustering that flags noise points.",
		Strengths:     []string{"finds arbitrary shapes", "no k required", "isolates outliers"},
		Limitations:   []string{"epsilon is hard to pick", "struggles with varying density"},
		Preprocessing: []string{"scale numeric features"},
		BaseScore:     15,
	},
	{
		Name:          "PCA + K-Means",
		Family:        familyDecomposition,
		Task:          TaskClustering,
		Description:   "Projects to principal components before clustering.",
		Strengths:     []string{"tames high dimensionality", "denoises before clustering"},
		Limitations:   []string{"components are hard to interpret", "linear projection only"},
		Preprocessing: []string{"scale numeric features"},
		BaseScore:     18,
	},
}

// Catalog returns a copy of the model catalog.
func Catalog() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}
