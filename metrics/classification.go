package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// 二値分類の陽性クラス
const positiveLabel = 1.0

// checkPair は入力ベクトルの検証を行い、長さを返す
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinary はラベルが 0/1 のみであることを確認する
func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be binary (0 or 1)")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, errors.Wrap(err, "ClassificationError")
	}
	return 1 - acc, nil
}

// ConfusionMatrix は二値分類の混同行列を返す。
// 行が実際のラベル、列が予測ラベル: [[TN, FP], [FN, TP]]
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if err := checkBinary("ConfusionMatrix", yTrue); err != nil {
		return nil, err
	}
	if err := checkBinary("ConfusionMatrix", yPred); err != nil {
		return nil, err
	}
	cm := mat.NewDense(2, 2, nil)
	for i := 0; i < n; i++ {
		r, c := int(yTrue.AtVec(i)), int(yPred.AtVec(i))
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, nil
}

// binaryCounts は TP, FP, FN を数える
func binaryCounts(op string, yTrue, yPred *mat.VecDense) (tp, fp, fn float64, err error) {
	cm, err := ConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, op)
	}
	return cm.At(1, 1), cm.At(0, 1), cm.At(1, 0), nil
}

// Precision は陽性クラス(1)の適合率 TP / (TP + FP) を計算する。
// 陽性予測が無い場合は 0 を返し、UndefinedMetricWarning を発生させる。
func Precision(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, fp, _, err := binaryCounts("Precision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if tp+fp == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		return 0, nil
	}
	return tp / (tp + fp), nil
}

// Recall は陽性クラス(1)の再現率（感度） TP / (TP + FN) を計算する。
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, _, fn, err := binaryCounts("Recall", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if tp+fn == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		return 0, nil
	}
	return tp / (tp + fn), nil
}

// F1 は適合率と再現率の調和平均 2TP / (2TP + FP + FN) を計算する。
func F1(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, fp, fn, err := binaryCounts("F1", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	denom := 2*tp + fp + fn
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f1", "no true nor predicted samples", 0))
		return 0, nil
	}
	return 2 * tp / denom, nil
}

// AUC は ROC 曲線下面積を Mann-Whitney の U 統計量として計算する。
// 同順位のスコアには平均順位を与える。
// yTrue が1クラスのみの場合は未定義のため 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b])
	})

	// 平均順位（1始まり）
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yScore.AtVec(idx[j+1]) == yScore.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, rankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == positiveLabel {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	u := rankSum - nPos*(nPos+1)/2
	return u / (nPos * nNeg), nil
}

// AUCMatrix は行列入力版の AUC。最初の列を使用する。
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rt, ct := yTrue.Dims()
	rs, cs := yScore.Dims()
	if rt == 0 || ct == 0 || rs == 0 || cs == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	return AUC(ColumnVector(yTrue, 0), ColumnVector(yScore, 0))
}

// ROCCurve は ROC 曲線の点（FPR, TPR）と対応するしきい値を返す。
// しきい値はスコアの降順で、先頭に (0, 0) と +Inf を置く。
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	n, err := checkPair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkBinary("ROCCurve", yTrue); err != nil {
		return nil, nil, nil, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) > yScore.AtVec(idx[b])
	})

	var nPos, nNeg float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == positiveLabel {
			nPos++
		} else {
			nNeg++
		}
	}

	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{math.Inf(1)}

	var tp, fp float64
	for k := 0; k < n; k++ {
		if yTrue.AtVec(idx[k]) == positiveLabel {
			tp++
		} else {
			fp++
		}
		// 同じスコアが続く間は点を追加しない
		if k+1 < n && yScore.AtVec(idx[k+1]) == yScore.AtVec(idx[k]) {
			continue
		}
		fpr = append(fpr, errors.SafeDivide(fp, nNeg))
		tpr = append(tpr, errors.SafeDivide(tp, nPos))
		thresholds = append(thresholds, yScore.AtVec(idx[k]))
	}
	return fpr, tpr, thresholds, nil
}

// BinaryLogLoss は二値交差エントロピーを計算する。予測確率は [eps, 1-eps] にクリップする。
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), eps, 1-eps)
		if yTrue.AtVec(i) == positiveLabel {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// ColumnVector は行列の第 col 列を VecDense に変換する。行数 0 の行列は受け付けない。
func ColumnVector(m mat.Matrix, col int) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, col))
	}
	return v
}
