// Package errors は学習・予測パイプラインの失敗を構造化された型で表現する。
// 警告まわりはscikit-learnの例外・警告システムに倣い、ハンドラの差し替えで制御する。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	警告ハンドリング
//
// ===========================================================================

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// zerolog未設定時のフォールバック
		log.Printf("pygbm-warning: %v\n", w)
	}
	// pkg/logからinitで注入される（循環importを避けるため）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は警告の処理方法を差し替える。
// 警告を握りつぶしたい場合は何もしないハンドラを渡す:
//
//	errors.SetWarningHandler(func(w error) {})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc は構造化ログへの警告出力関数を登録する。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させる。zerolog出力が登録されていればそちらへ、
// なければ現在のハンドラへ渡す。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// DataConversionWarning は入力データの型を暗黙的に変換したときの警告。
// float32のnpy配列をfloat64へ広げて読み込む場合などに発生する。
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject は警告をzerologイベントの構造化フィールドに展開する。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning はDataConversionWarningを組み立てる。
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が定義できない入力に対する警告。
// 目的変数の分散がゼロのままR²を求めた場合などに発生する。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で代替として返す値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning はUndefinedMetricWarningを組み立てる。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	エラー型
//
// ===========================================================================

// NotFittedError は未学習のモデルでPredictなどを呼んだときのエラー。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("pygbm: %s: this estimator is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はエラーをzerologイベントの構造化フィールドに展開する。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError はスタックトレース付きのNotFittedErrorを返す。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力の次元が学習時と食い違ったときのエラー。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0が行、1が列（特徴量）
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("pygbm: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject はエラーをzerologイベントの構造化フィールドに展開する。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError はスタックトレース付きのDimensionErrorを返す。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError はパラメータ検証に失敗したときのエラー。
// ValueErrorより具体的に、どのパラメータが何故だめかを持つ。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pygbm: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はエラーをzerologイベントの構造化フィールドに展開する。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError はスタックトレース付きのValidationErrorを返す。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値そのものが不正なときのエラー。
// max_leaf_nodesに0を渡した場合など。メッセージは呼び出し側で
// `パラメータ名=値 理由` の形式に組み立てる。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("pygbm: %s: %s", e.Op, e.Message)
}

// NewValueError はスタックトレース付きのValueErrorを返す。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は学習・推論パイプラインの一般的な失敗を包むエラー。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pygbm: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("pygbm: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError はスタックトレース付きのModelErrorを返す。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// NumericalInstabilityError は計算中にNaNやInfを検出したときのエラー。
type NumericalInstabilityError struct {
	Operation string                 // 検出箇所（"gradient_update"など）
	Values    []float64              // 問題のあった値
	Context   map[string]interface{} // デバッグ用の付加情報
	Iteration int                    // 検出したイテレーション
}

// maxReportedValues はエラーメッセージに載せる値の上限。
const maxReportedValues = 5

func (e *NumericalInstabilityError) Error() string {
	var vals strings.Builder
	for i, v := range e.Values {
		if i == maxReportedValues {
			vals.WriteString(", ...")
			break
		}
		if i > 0 {
			vals.WriteString(", ")
		}
		fmt.Fprintf(&vals, "%.6g", v)
	}
	return fmt.Sprintf("pygbm: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, vals.String())
}

// NewNumericalInstabilityError はスタックトレース付きのNumericalInstabilityErrorを返す。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
		Context:   make(map[string]interface{}),
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors の再エクスポート
//
// ===========================================================================

// Is はerrのチェーンにtargetが含まれるかを判定する。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はerrのチェーンからtargetの型のエラーを取り出す。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap はエラーにメッセージを重ねる。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf はエラーにフォーマット済みメッセージを重ねる。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New はスタックトレース付きの新しいエラーを作る。
func New(message string) error {
	return errors.New(message)
}

// Newf はスタックトレース付きのフォーマット済みエラーを作る。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack は既存のエラーに現在位置のスタックトレースを付ける。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータセットを表す共通エラー。
	ErrEmptyData = New("empty data")
)
