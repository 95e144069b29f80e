package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// Resampler はサンプル数を変更する変換（オーバーサンプリング等）のインターフェース
type Resampler interface {
	// FitResample は X, y から新しい X, y を生成する
	FitResample(X, y mat.Matrix) (mat.Matrix, mat.Matrix, error)
}
