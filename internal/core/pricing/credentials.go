package pricing

import (
	"context"
	"time"

	"recipe-share/internal/core/pricing/kroger"
	"recipe-share/internal/core/pricing/token"
	"recipe-share/internal/infrastructure/config"
)

// credentialExchanger 以設定中的 client credentials 向 Kroger 換取 token
type credentialExchanger struct {
	client *kroger.Client
	cfg    config.KrogerConfig
}

// NewCredentialExchanger 創建 Kroger 憑證交換器
func NewCredentialExchanger(client *kroger.Client, cfg config.KrogerConfig) token.Exchanger {
	return &credentialExchanger{client: client, cfg: cfg}
}

// Exchange 實現 token.Exchanger 介面
func (e *credentialExchanger) Exchange(ctx context.Context) (token.Grant, error) {
	resp, err := e.client.ExchangeToken(ctx, e.cfg.ClientID, e.cfg.ClientSecret, e.cfg.Scope)
	if err != nil {
		return token.Grant{}, err
	}
	return token.Grant{
		Value:    resp.AccessToken,
		Lifetime: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}
