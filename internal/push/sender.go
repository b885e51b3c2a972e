package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
)

// SubscriptionSource — хранилище подписок (repository.PushRepository).
type SubscriptionSource interface {
	ForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	Delete(ctx context.Context, userID, endpoint string) error
}

// Payload — содержимое уведомления, сериализуется в JSON для service worker.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender отправляет Web Push по всем подпискам пользователя. Без VAPID-ключей
// работает как no-op: подписки сохраняются, отправка не выполняется.
type Sender struct {
	subs SubscriptionSource
	opts *webpush.Options
}

func NewSender(subs SubscriptionSource, keys *VAPIDKeys, subscriber string) *Sender {
	s := &Sender{subs: subs}
	if keys.valid() {
		s.opts = &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return s
}

// Enabled сообщает, настроена ли отправка.
func (s *Sender) Enabled() bool {
	return s != nil && s.opts != nil
}

// Notify шлёт уведомление на все подписки пользователя. Протухшие подписки
// (404/410 от пуш-сервиса) удаляются.
func (s *Sender) Notify(ctx context.Context, userID string, p Payload) {
	if !s.Enabled() {
		return
	}
	defer logger.DeferLogDuration("push.Notify", time.Now())()

	subs, err := s.subs.ForUser(ctx, userID)
	if err != nil {
		logger.Errorf("push: load subscriptions user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	body, err := json.Marshal(p)
	if err != nil {
		logger.Errorf("push: marshal payload: %v", err)
		return
	}

	for i := range subs {
		sub := &webpush.Subscription{
			Endpoint: subs[i].Endpoint,
			Keys: webpush.Keys{
				P256dh: subs[i].P256dh,
				Auth:   subs[i].Auth,
			},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, body, sub, s.opts)
		if err != nil {
			logger.Errorf("push: send user=%s: %v", userID, err)
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			if err := s.subs.Delete(ctx, userID, subs[i].Endpoint); err != nil {
				logger.Errorf("push: delete stale subscription user=%s: %v", userID, err)
			}
		}
		resp.Body.Close()
	}
}
