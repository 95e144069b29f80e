// Package diabench benchmarks classifier families on a clinical diabetes
// table: it loads the data, prints an exploratory report, balances classes
// with SMOTE, standardizes features and runs an exhaustive grid search with
// stratified cross-validation for every registered model before scoring it
// on a held-out split.
//
// # Installation
//
//	go install github.com/YuminosukeSato/diabench/cmd/diabench@latest
//
// # Quick Start
//
// Run the whole pipeline on a CSV or XLSX file:
//
//	DIABENCH_DATA_PATH=diabetesTotall.csv diabench
//
// or with a run file:
//
//	diabench -config run.hcl
//
// The evaluation loop can also be driven directly:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/diabench/evaluation"
//	    "github.com/YuminosukeSato/diabench/model_selection"
//	)
//
//	func main() {
//	    split, err := model_selection.TrainTestSplit(X, y, 0.3, true, 42)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    evaluator := evaluation.NewEvaluator(evaluation.DefaultRegistry(42))
//	    results, err := evaluator.Evaluate(context.Background(),
//	        split.XTrain, split.YTrain, split.XTest, split.YTest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, r := range results {
//	        fmt.Println(r.Model, r.Accuracy)
//	    }
//	}
//
// # Packages
//
//   - config: run configuration (HCL, YAML, .env, DIABENCH_* variables)
//   - dataset: tabular loading, feature selection and the exploratory report
//   - sklearn/over_sampling: SMOTE class balancing
//   - preprocessing: standard scaling
//   - model_selection: train/test split, k-fold splitters, parameter grids, grid search
//   - sklearn/ensemble, sklearn/tree, sklearn/linear_model, sklearn/neighbors,
//     sklearn/svm, sklearn/neural_network: the estimators
//   - metrics: classification metrics, ROC and AUC
//   - evaluation: model registry and evaluation loop
//   - report: console output, grid table, charts and workbook export
//   - core/model: estimator contracts and fitted-state helpers
//   - core/parallel: CPU fan-out helper
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Configuration
//
// Settings resolve from defaults, then the optional -config file, then .env,
// then DIABENCH_* environment variables:
//
//	data_path   = "diabetesTotall.csv"
//	output_dir  = "out"
//	seed        = 42
//	test_size   = 0.3
//	cv_folds    = 5
//	n_jobs      = -1
//	log_level   = "info"
//	log_format  = "console"
//	export_xlsx = true
//	charts      = true
package diabench
