package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dedupPrefix = "renewal:notify:"
	dedupTTL    = 24 * time.Hour
)

// DiscordNotifier publica mensagens num webhook do Discord. Mensagens com a
// mesma chave só saem uma vez a cada 24h.
type DiscordNotifier struct {
	httpClient  *http.Client
	webhookURL  string
	clientRedis *redis.Client
	logger      *zap.Logger
}

func NewDiscordNotifier(webhookURL string, rdb *redis.Client, logger *zap.Logger) *DiscordNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscordNotifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		webhookURL:  webhookURL,
		clientRedis: rdb,
		logger:      logger,
	}
}

// Notify envia msg. Sem webhook configurado vira no-op; key vazia desliga
// a deduplicação.
func (n *DiscordNotifier) Notify(ctx context.Context, key, msg string) error {
	if n.webhookURL == "" {
		n.logger.Debug("[Notify] webhook não configurado, ignorando", zap.String("msg", msg))
		return nil
	}

	if key != "" && n.clientRedis != nil {
		fresh, err := n.clientRedis.SetNX(ctx, dedupPrefix+key, "1", dedupTTL).Result()
		if err != nil {
			n.logger.Warn("[Notify] erro no redis, enviando mesmo assim", zap.Error(err))
		} else if !fresh {
			n.logger.Debug("[Notify] mensagem repetida suprimida", zap.String("key", key))
			return nil
		}
	}

	if err := n.post(ctx, msg); err != nil {
		if key != "" && n.clientRedis != nil {
			// libera a chave para a próxima tentativa
			n.clientRedis.Del(ctx, dedupPrefix+key)
		}
		return err
	}
	return nil
}

func (n *DiscordNotifier) post(ctx context.Context, msg string) error {
	body, err := json.Marshal(map[string]string{"content": msg})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; RenewalBot/1.0)")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erro enviando webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (muitas requisições)")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("erro no webhook discord: %d", resp.StatusCode)
	}
	return nil
}
