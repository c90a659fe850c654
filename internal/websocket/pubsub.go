package websocket

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// sessionEventsChannel - канал pub/sub для пересылки событий сессий между инстансами
const sessionEventsChannel = "sessions:events"

// PubSubProvider абстрагирует механизм доставки сообщений между инстансами.
// Гарантия доставки - at-least-once при живом соединении; события-снимки
// позволяют клиентам пережить и потерю, и дубликат.
type PubSubProvider interface {
	// Publish публикует сообщение в канал
	Publish(channel string, message []byte) error

	// Subscribe подписывается на канал; канал закрывается при отмене контекста
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close освобождает ресурсы провайдера
	Close() error
}

// NoOpPubSub - провайдер-заглушка для одиночного инстанса:
// публикация уходит в никуда, подписка молчит
type NoOpPubSub struct{}

// Publish ничего не делает
func (p *NoOpPubSub) Publish(channel string, message []byte) error {
	return nil
}

// Subscribe возвращает канал, из которого никогда ничего не придет
func (p *NoOpPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Close ничего не делает
func (p *NoOpPubSub) Close() error {
	return nil
}

// RedisPubSub - провайдер на Redis Pub/Sub для работы нескольких инстансов
type RedisPubSub struct {
	client redis.UniversalClient

	mu            sync.Mutex
	subscriptions []*redis.PubSub
	closed        bool
}

// NewRedisPubSub создает провайдер и проверяет соединение
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis pub/sub ping: %w", err)
	}
	return &RedisPubSub{client: client}, nil
}

// Publish публикует сообщение в канал Redis
func (p *RedisPubSub) Publish(channel string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe подписывается на канал Redis. Сообщения ретранслируются в
// возвращаемый канал до отмены контекста; go-redis сам переподписывается
// при обрыве соединения.
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pub/sub provider is closed")
	}
	sub := p.client.Subscribe(ctx, channel)
	p.subscriptions = append(p.subscriptions, sub)
	p.mu.Unlock()

	// Дожидаемся подтверждения подписки
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		redisCh := sub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					log.Printf("[RedisPubSub] Буфер подписки %s переполнен, сообщение отброшено", channel)
				}
			case <-ctx.Done():
				sub.Close()
				return
			}
		}
	}()
	return out, nil
}

// Close закрывает все активные подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, sub := range p.subscriptions {
		if err := sub.Close(); err != nil {
			log.Printf("[RedisPubSub] Ошибка закрытия подписки: %v", err)
		}
	}
	p.subscriptions = nil
	return nil
}

// generateInstanceID возвращает идентификатор инстанса для фильтрации
// собственных сообщений в pub/sub
func generateInstanceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
}
