package model

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// SaveModel は学習済みモデルをgob形式でファイルに保存する。
//
// gobは非公開フィールドを符号化しないため、復元に必要な学習済み状態は
// すべて公開フィールドに置くこと。
//
// 使用例:
//
//	reg := pygbm.NewGradientBoostingRegressor()
//	// ... モデルの学習 ...
//	err := model.SaveModel(reg, "model.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if err := SaveModelToWriter(model, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadModel はgob形式のファイルからモデルを復元する。
// modelにはコンストラクタで生成したポインタを渡すこと。
//
// 使用例:
//
//	reg := pygbm.NewGradientBoostingRegressor()
//	err := model.LoadModel(reg, "model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer file.Close()
	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをgob形式でwに書き出す。
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadModelFromReader はrからgob形式のモデルを読み込む。
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	return nil
}
