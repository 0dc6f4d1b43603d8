// Package allowlist 管理APIのクライアントIP許可リスト
package allowlist

import (
	"net"
	"strings"
)

// List 許可するネットワークの一覧（空の場合はすべて許可）
type List []*net.IPNet

// Parse IPアドレスまたはCIDRの一覧を解析する。解析できない要素は無視する
func Parse(entries []string) List {
	var list List
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if _, n, err := net.ParseCIDR(entry); err == nil {
			list = append(list, n)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 128
		if v4 := ip.To4(); v4 != nil {
			ip = v4
			bits = 32
		}
		list = append(list, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return list
}

// Allows IPアドレスが許可されているか
func (l List) Allows(ip string) bool {
	if len(l) == 0 {
		return true
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, n := range l {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
