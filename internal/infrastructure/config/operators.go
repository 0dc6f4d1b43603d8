package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// OperatorsFile 事業者レジストリファイルの構造
type OperatorsFile struct {
	Operators []OperatorConfig `yaml:"operators"`
}

// OperatorConfig 事業者ごとの設定
type OperatorConfig struct {
	Key         string                 `yaml:"key"`
	Category    string                 `yaml:"category"`
	DisplayName string                 `yaml:"display_name"`
	Endpoint    ProviderEndpointConfig `yaml:"provider"`
}

// ProviderEndpointConfig 事業者APIの呼び出しと応答判定の設定
type ProviderEndpointConfig struct {
	URL               string            `yaml:"url"`
	Method            string            `yaml:"method"`
	Headers           map[string]string `yaml:"headers"`
	IdempotencyHeader string            `yaml:"idempotency_header"`
	// 成功とみなすHTTPステータスの範囲
	SuccessStatusMin int `yaml:"success_status_min"`
	SuccessStatusMax int `yaml:"success_status_max"`
	// 成功判定に使うレスポンスJSONのパス（gjson記法）と期待値
	SuccessPath  string        `yaml:"success_path"`
	SuccessValue string        `yaml:"success_value"`
	TxIDPath     string        `yaml:"tx_id_path"`
	ErrorPath    string        `yaml:"error_path"`
	RateLimit    float64       `yaml:"rate_limit"`
	Burst        int           `yaml:"burst"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LoadOperators 事業者レジストリファイルを読み込む
func LoadOperators(path string) ([]OperatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operators file: %w", err)
	}
	return ParseOperators(data)
}

// ParseOperators YAMLから事業者設定を読み込み、既定値を補う
func ParseOperators(data []byte) ([]OperatorConfig, error) {
	var file OperatorsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse operators file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Operators))
	for i := range file.Operators {
		op := &file.Operators[i]
		if op.Key == "" {
			return nil, fmt.Errorf("operators[%d]: key is required", i)
		}
		if _, ok := seen[op.Key]; ok {
			return nil, fmt.Errorf("operators[%d]: duplicate key %q", i, op.Key)
		}
		seen[op.Key] = struct{}{}
		if op.Category != "mobile" && op.Category != "game" {
			return nil, fmt.Errorf("operator %q: invalid category %q", op.Key, op.Category)
		}
		op.Endpoint.applyDefaults()
	}
	return file.Operators, nil
}

func (e *ProviderEndpointConfig) applyDefaults() {
	if e.Method == "" {
		e.Method = "POST"
	}
	if e.IdempotencyHeader == "" {
		e.IdempotencyHeader = "Idempotency-Key"
	}
	if e.SuccessStatusMin == 0 && e.SuccessStatusMax == 0 {
		e.SuccessStatusMin, e.SuccessStatusMax = 200, 299
	}
	if e.SuccessPath == "" {
		e.SuccessPath = "status"
		if e.SuccessValue == "" {
			e.SuccessValue = "success"
		}
	}
	if e.Burst == 0 {
		e.Burst = 1
	}
}

// ReservationSafetyMargin 事業者呼び出しの上限と確保の有効期間の間に空ける最小の間隔
const ReservationSafetyMargin = 10 * time.Second

// CheckOperatorTimeouts 事業者ごとの呼び出し上限が確保の有効期間に収まるか検証する
//
// timeout 未指定の事業者には defaultTimeout が使われる。呼び出し中の確保が回収されると
// 事業者側だけでチャージが成立するため、起動時に拒否する。
func CheckOperatorTimeouts(operators []OperatorConfig, defaultTimeout, maxAge time.Duration) error {
	for _, op := range operators {
		timeout := defaultTimeout
		if op.Endpoint.Timeout > 0 {
			timeout = op.Endpoint.Timeout
		}
		if timeout+ReservationSafetyMargin > maxAge {
			return fmt.Errorf("operator %q: provider timeout %s must be at least %s shorter than RESERVATION_MAX_AGE (%s)",
				op.Key, timeout, ReservationSafetyMargin, maxAge)
		}
	}
	return nil
}
