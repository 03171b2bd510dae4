// Package vault stores broker investor passwords in HashiCorp Vault so
// they never touch the relational database. With Vault disabled the
// client degrades to an in-process cache for development.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"mt-trading-dashboard/config"
)

// BrokerCredential is the secret material for one linked trading account
type BrokerCredential struct {
	Login            string `json:"login"`
	InvestorPassword string `json:"investor_password"`
	Server           string `json:"server"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	cache map[string]*BrokerCredential // accountID -> credential
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]*BrokerCredential),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]*BrokerCredential),
	}, nil
}

func (c *Client) secretPath(accountID string) string {
	mount := c.config.MountPath
	if mount == "" {
		mount = "secret"
	}
	return fmt.Sprintf("%s/data/broker-credentials/%s", mount, accountID)
}

func (c *Client) metadataPath(accountID string) string {
	mount := c.config.MountPath
	if mount == "" {
		mount = "secret"
	}
	return fmt.Sprintf("%s/metadata/broker-credentials/%s", mount, accountID)
}

// StoreCredential stores the broker credential for a trading account
func (c *Client) StoreCredential(ctx context.Context, accountID string, cred BrokerCredential) error {
	c.mu.Lock()
	c.cache[accountID] = &cred
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"login":             cred.Login,
			"investor_password": cred.InvestorPassword,
			"server":            cred.Server,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(accountID), secretData); err != nil {
		return fmt.Errorf("failed to store broker credential in vault: %w", err)
	}
	return nil
}

// GetCredential retrieves the broker credential for a trading account
func (c *Client) GetCredential(ctx context.Context, accountID string) (*BrokerCredential, error) {
	c.mu.RLock()
	if cached, ok := c.cache[accountID]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("broker credential not found and vault is disabled")
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to read broker credential from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("broker credential not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	cred := &BrokerCredential{
		Login:            getString(data, "login"),
		InvestorPassword: getString(data, "investor_password"),
		Server:           getString(data, "server"),
	}

	c.mu.Lock()
	c.cache[accountID] = cred
	c.mu.Unlock()

	return cred, nil
}

// DeleteCredential removes the broker credential for a trading account
func (c *Client) DeleteCredential(ctx context.Context, accountID string) error {
	c.mu.Lock()
	delete(c.cache, accountID)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(accountID)); err != nil {
		return fmt.Errorf("failed to delete broker credential from vault: %w", err)
	}
	return nil
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
