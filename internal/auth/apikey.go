package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mt-trading-dashboard/internal/database"
)

// HeaderAgentAPIKey carries the per-account agent credential
const HeaderAgentAPIKey = "X-API-Key"

// agentKeyPrefix makes leaked keys recognizable in logs and scanners
const agentKeyPrefix = "tga_"

// AgentKeyStore is the slice of the persistence layer the agent
// authenticator needs
type AgentKeyStore interface {
	CreateAgentCredential(ctx context.Context, cred *database.AgentCredential) error
	GetAgentCredentialByHash(ctx context.Context, keyHash string) (*database.AgentCredential, error)
}

// GenerateAgentKey creates a new agent API key for a trading account.
// The plaintext key is returned exactly once; only its SHA-256 hash is
// stored.
func GenerateAgentKey(ctx context.Context, store AgentKeyStore, accountID, label string) (string, *database.AgentCredential, error) {
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, fmt.Errorf("failed to generate agent key: %w", err)
	}

	plaintext := agentKeyPrefix + hex.EncodeToString(secret)

	cred := &database.AgentCredential{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Label:     label,
		KeyHash:   HashAgentKey(plaintext),
	}

	if err := store.CreateAgentCredential(ctx, cred); err != nil {
		return "", nil, err
	}

	return plaintext, cred, nil
}

// HashAgentKey returns the stored form of an agent API key
func HashAgentKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// AgentMiddleware authenticates the broker-side execution agent by its
// per-account API key and binds the resolved account ID to the context
func AgentMiddleware(store AgentKeyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderAgentAPIKey))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing " + HeaderAgentAPIKey + " header",
			})
			return
		}

		cred, err := store.GetAgentCredentialByHash(c.Request.Context(), HashAgentKey(key))
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   ErrInvalidAPIKey.Code,
					"message": ErrInvalidAPIKey.Message,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "INTERNAL",
				"message": "failed to verify agent credential",
			})
			return
		}

		c.Set(ContextKeyAccountID, cred.AccountID)
		c.Next()
	}
}
