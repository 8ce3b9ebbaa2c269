package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"longvideo/internal/infra"
	"longvideo/internal/sqlinline"
)

const (
	ProviderGemini = "gemini"
)

// Store keeps provider API keys in the integration_tokens table so operators
// can rotate them without redeploying the service.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// EnsureSchema creates the integration_tokens table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, sqlinline.QCreateIntegrationTokens)
	return err
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetGeminiAPIKey stores key together with the Veo model it was issued for.
func (s *Store) SetGeminiAPIKey(ctx context.Context, key, model string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	var props map[string]any
	if model = strings.TrimSpace(model); model != "" {
		props = map[string]any{"model": model}
	}
	return s.upsert(ctx, ProviderGemini, key, props)
}

// ResolveGeminiAPIKey returns the explicit key when set, else the stored one.
func (s *Store) ResolveGeminiAPIKey(ctx context.Context, explicit string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}
	return s.GeminiAPIKey(ctx)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
