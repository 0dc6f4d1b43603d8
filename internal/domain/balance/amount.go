package balance

import "github.com/shopspring/decimal"

// maxExponent 係数が int64 に収まる値で意味を持つ10の指数の範囲
const maxExponent = 18

// WholeAmount 正の整数かつ MaxAmount 以下の金額を int64 に変換する
//
// 係数と指数だけを見て判定し、1e20000000 のような値を展開しない。
func WholeAmount(d decimal.Decimal) (int64, bool) {
	if d.Sign() <= 0 {
		return 0, false
	}
	exp := d.Exponent()
	if exp > maxExponent || exp < -maxExponent {
		return 0, false
	}
	coefficient := d.Coefficient()
	if coefficient.BitLen() > 63 {
		return 0, false
	}

	v := coefficient.Int64()
	for ; exp < 0; exp++ {
		if v%10 != 0 {
			return 0, false
		}
		v /= 10
	}
	for ; exp > 0; exp-- {
		if v > MaxAmount/10 {
			return 0, false
		}
		v *= 10
	}
	if v > MaxAmount {
		return 0, false
	}
	return v, true
}
