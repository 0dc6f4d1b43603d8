package auth

// IssueTokenRequest トークン発行リクエスト
type IssueTokenRequest struct {
	UserID    string
	Requester string // 発行を依頼した管理者（監査用）
}

// IssueTokenResponse トークン発行レスポンス
type IssueTokenResponse struct {
	Token     string
	ExpiresIn int64 // 秒単位
	TokenType string
}
